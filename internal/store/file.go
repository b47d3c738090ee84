package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const journalFile = ".journal.json"

// FileBackend keeps each collection as <dir>/<name>.json.
//
// Every document is replaced through a temp file and a rename. A batch of
// several documents is first written to a journal, so a crash between the
// renames is repaired by Recover on the next start.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

type journal struct {
	Documents []Document `json:"documents"`
}

// NewFileBackend creates the data directory if needed and replays any leftover journal.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	b := &FileBackend{dir: dir}
	if _, err := b.Recover(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, name+".json")
}

func (b *FileBackend) Load(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return data, err
}

func (b *FileBackend) SaveBatch(_ context.Context, docs []Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch len(docs) {
	case 0:
		return nil
	case 1:
		return b.writeFile(b.path(docs[0].Name), docs[0].Data)
	}

	data, err := json.Marshal(journal{Documents: docs})
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	if err := b.writeFile(filepath.Join(b.dir, journalFile), data); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}

	if err := b.apply(docs); err != nil {
		return err
	}
	return os.Remove(filepath.Join(b.dir, journalFile))
}

// Recover replays an unfinished batch. It returns the number of documents rewritten.
func (b *FileBackend) Recover() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := filepath.Join(b.dir, journalFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read journal: %w", err)
	}

	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		// The journal itself was never completed, so no document was touched.
		return 0, os.Remove(path)
	}

	if err := b.apply(j.Documents); err != nil {
		return 0, err
	}
	return len(j.Documents), os.Remove(path)
}

func (b *FileBackend) Close() error {
	return nil
}

func (b *FileBackend) apply(docs []Document) error {
	for _, doc := range docs {
		if err := b.writeFile(b.path(doc.Name), doc.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", doc.Name, err)
		}
	}
	return nil
}

func (b *FileBackend) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
