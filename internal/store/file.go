package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type fileRecord struct {
	SendTime time.Time `json:"send_time"`
	FileName string    `json:"file_name"`
	Unacked  []uint32  `json:"receiver_unacked_parts"`
}

// FileStore keeps the ledger as a JSON document grouped by destination.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Load(ctx context.Context) ([]Transfer, error) {
	raw, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fs.path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var doc map[string][]fileRecord
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, fs.path, err)
	}

	var transfers []Transfer
	for dest, records := range doc {
		for _, r := range records {
			unacked := append([]uint32(nil), r.Unacked...)
			sort.Slice(unacked, func(i, j int) bool { return unacked[i] < unacked[j] })
			transfers = append(transfers, Transfer{
				Destination: dest,
				FileName:    r.FileName,
				SendTime:    r.SendTime,
				Unacked:     unacked,
			})
		}
	}
	return transfers, nil
}

// Save writes the new document next to the old one and renames it into
// place once it is synced.
func (fs *FileStore) Save(ctx context.Context, transfers []Transfer) error {
	doc := make(map[string][]fileRecord)
	for _, t := range transfers {
		doc[t.Destination] = append(doc[t.Destination], fileRecord{
			SendTime: t.SendTime,
			FileName: t.FileName,
			Unacked:  t.Unacked,
		})
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return fmt.Errorf("replacing %s: %w", fs.path, err)
	}
	return nil
}

func (fs *FileStore) Close() error {
	return nil
}
