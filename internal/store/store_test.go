package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rudransh-shrivastava/peer-relay/internal/db"
	"github.com/rudransh-shrivastava/peer-relay/internal/store"
)

func sampleTransfers() []store.Transfer {
	base := time.Unix(1700000000, 123456789)
	return []store.Transfer{
		{Destination: "127.0.0.1:4001", FileName: "a.txt", SendTime: base, Unacked: []uint32{0, 1, 2}},
		{Destination: "127.0.0.1:4001", FileName: "b.txt", SendTime: base.Add(time.Second), Unacked: []uint32{5}},
		{Destination: "127.0.0.1:4002", FileName: "a.txt", SendTime: base.Add(2 * time.Second), Unacked: []uint32{0, 3, 4, 9}},
	}
}

func sortTransfers(ts []store.Transfer) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Destination != ts[j].Destination {
			return ts[i].Destination < ts[j].Destination
		}
		return ts[i].FileName < ts[j].FileName
	})
}

func assertSameTransfers(t *testing.T, got, want []store.Transfer) {
	t.Helper()
	sortTransfers(got)
	sortTransfers(want)
	if len(got) != len(want) {
		t.Fatalf("got %d transfers, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Destination != w.Destination || g.FileName != w.FileName {
			t.Errorf("transfer %d = %s/%s, want %s/%s", i, g.Destination, g.FileName, w.Destination, w.FileName)
		}
		if !g.SendTime.Equal(w.SendTime) {
			t.Errorf("transfer %d send time = %v, want %v", i, g.SendTime, w.SendTime)
		}
		if !reflect.DeepEqual(g.Unacked, w.Unacked) {
			t.Errorf("transfer %d unacked = %v, want %v", i, g.Unacked, w.Unacked)
		}
	}
}

func exerciseStore(t *testing.T, s store.LedgerStore) {
	t.Helper()
	ctx := context.Background()

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("initial Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty store, got %d transfers", len(loaded))
	}

	want := sampleTransfers()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertSameTransfers(t, loaded, want)

	// a smaller state fully replaces the previous one
	if err := s.Save(ctx, want[:1]); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	loaded, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertSameTransfers(t, loaded, sampleTransfers()[:1])

	if err := s.Save(ctx, nil); err != nil {
		t.Fatalf("empty Save failed: %v", err)
	}
	loaded, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty store, got %d transfers", len(loaded))
	}
}

func TestFileStore(t *testing.T) {
	s := store.NewFileStore(filepath.Join(t.TempDir(), "ledger.json"))
	exerciseStore(t, s)
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	s := store.NewFileStore(filepath.Join(dir, "ledger.json"))
	if err := s.Save(context.Background(), sampleTransfers()); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "ledger.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("directory contains %v", names)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := store.NewFileStore(path).Load(context.Background())
	if !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestSQLStore(t *testing.T) {
	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	s := store.NewSQLStore(gdb)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("PEER_RELAY_REDIS_ADDR")
	if addr == "" {
		t.Skip("PEER_RELAY_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing redis: %v", err)
	}
	s := store.NewRedisStore(client)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := store.New(context.Background(), store.Config{Backend: "tape"}); err == nil {
		t.Fatal("expected error")
	}
}
