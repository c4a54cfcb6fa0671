// Package files is the node's local file store: the files it can serve and
// the files it has received.
package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const DefaultReceivedPrefix = "received_"

var ErrInvalidName = errors.New("invalid file name")

// Dir serves files from one directory. Received files are written under a
// prefix so they never overwrite local originals.
type Dir struct {
	root   string
	prefix string
	logger *logrus.Logger

	mu       sync.RWMutex
	index    map[string]struct{}
	watching bool
}

func NewDir(root, receivedPrefix string, logger *logrus.Logger) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", root, err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dir{
		root:   root,
		prefix: receivedPrefix,
		logger: logger,
		index:  make(map[string]struct{}),
	}, nil
}

func (d *Dir) Root() string {
	return d.root
}

// names arrive from the network and must not leave the directory
func (d *Dir) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.root, name), nil
}

func (d *Dir) ReadWholeFile(name string) ([]byte, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// WriteWholeFile stores data as <prefix><name>, replacing it atomically.
func (d *Dir) WriteWholeFile(name string, data []byte) error {
	p, err := d.path(d.prefix + name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.root, ".incoming-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("replacing %s: %w", p, err)
	}

	d.mu.Lock()
	d.index[d.prefix+name] = struct{}{}
	d.mu.Unlock()
	return nil
}

func (d *Dir) ReceivedName(name string) string {
	return d.prefix + name
}

func (d *Dir) Exists(name string) bool {
	p, err := d.path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// List returns the regular files in the directory, sorted. While Watch is
// running the answer comes from the watched index.
func (d *Dir) List() ([]string, error) {
	d.mu.RLock()
	watching := d.watching
	d.mu.RUnlock()

	if !watching {
		if err := d.Rescan(); err != nil {
			return nil, err
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.index))
	for name := range d.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *Dir) Rescan() error {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return fmt.Errorf("listing %s: %w", d.root, err)
	}
	index := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !isTemp(e.Name()) {
			index[e.Name()] = struct{}{}
		}
	}
	d.mu.Lock()
	d.index = index
	d.mu.Unlock()
	return nil
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, ".incoming-")
}

// Watch keeps the index in step with the directory until ctx ends.
func (d *Dir) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.root); err != nil {
		return fmt.Errorf("watching %s: %w", d.root, err)
	}
	if err := d.Rescan(); err != nil {
		return err
	}

	d.mu.Lock()
	d.watching = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.watching = false
		d.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			d.apply(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warnf("File watcher error: %v", err)
			if err := d.Rescan(); err != nil {
				d.logger.Warnf("Rescan failed: %v", err)
			}
		}
	}
}

func (d *Dir) apply(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if isTemp(name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		d.mu.Lock()
		delete(d.index, name)
		d.mu.Unlock()
		d.logger.Debugf("File %s left %s", name, d.root)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || !info.Mode().IsRegular() {
			return
		}
		d.mu.Lock()
		d.index[name] = struct{}{}
		d.mu.Unlock()
		d.logger.Debugf("File %s available in %s", name, d.root)
	}
}
