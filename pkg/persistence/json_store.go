package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// JSONStore writes one <dataset>_<username>_<unix>.json file per session.
type JSONStore struct {
	dir string
	// serializes file name selection and the write
	mu sync.Mutex
}

// NewJSONStore creates the directory if needed.
// If dir is empty, uses os.TempDir()/metaexp-rated
func NewJSONStore(dir string) (*JSONStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "metaexp-rated")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rated datasets directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

// Dir returns the output directory.
func (s *JSONStore) Dir() string { return s.dir }

// isPathWithinDirectory checks that the resolved path is within the expected directory.
func isPathWithinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)

	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}

	return strings.HasPrefix(cleanPath, cleanDir)
}

// sessionPath picks a free path for record, bumping the timestamp on clashes.
func sessionPath(dir string, record *SessionRecord, ext string) (string, error) {
	if err := record.Validate(); err != nil {
		return "", err
	}
	ts := endedAt(record).Unix()
	for {
		name := fmt.Sprintf("%s_%s_%d%s", record.Dataset, record.Username, ts, ext)
		path := filepath.Join(dir, name)
		if !isPathWithinDirectory(path, dir) {
			return "", ErrInvalidName
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		ts++
	}
}

// Save writes record atomically.
func (s *JSONStore) Save(ctx context.Context, record *SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := sessionPath(s.dir, record, ".json")
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	// Write to a temporary file first, then rename for atomic write
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename session file: %w", err)
	}
	return nil
}

// List returns the stored records of dataset ordered by end time. An empty
// dataset lists everything.
func (s *JSONStore) List(ctx context.Context, dataset string) ([]*SessionRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rated datasets directory: %w", err)
	}

	var records []*SessionRecord
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Only process .json files, skip .tmp files
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if dataset != "" && !strings.HasPrefix(entry.Name(), dataset+"_") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var record SessionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		if dataset != "" && record.Dataset != dataset {
			continue
		}
		records = append(records, &record)
	}
	sortRecords(records)
	return records, nil
}

// Close is a no-op; every Save writes a complete file.
func (s *JSONStore) Close() error { return nil }

func sortRecords(records []*SessionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EndedAt.Before(records[j].EndedAt)
	})
}
