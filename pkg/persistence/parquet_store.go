package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/metaexp/pkg/types"
)

// ParquetRatedMetaPath is one row of a session parquet file.
type ParquetRatedMetaPath struct {
	SessionID      string   `parquet:"session_id"`
	Dataset        string   `parquet:"dataset"`
	Username       string   `parquet:"username"`
	Purpose        string   `parquet:"purpose"`
	StartNodeIDs   []int64  `parquet:"start_node_ids"`
	EndNodeIDs     []int64  `parquet:"end_node_ids"`
	StartedAt      int64    `parquet:"started_at"` // unix nanoseconds
	EndedAt        int64    `parquet:"ended_at"`   // unix nanoseconds
	ID             int64    `parquet:"id"`
	MetaPath       []string `parquet:"metapath"`
	Representation string   `parquet:"representation"`
	Rating         float64  `parquet:"rating"`
	Rated          bool     `parquet:"rated"`
	TimeToRate     *float64 `parquet:"time_to_rate,optional"`
	Structural     float64  `parquet:"structural_value"`
}

// ParquetStore writes one parquet file per session with one row per emitted
// meta-path.
type ParquetStore struct {
	dir string
	// serializes file name selection and the write
	mu sync.Mutex
}

// NewParquetStore creates the directory if needed.
func NewParquetStore(dir string) (*ParquetStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "metaexp-rated")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rated datasets directory: %w", err)
	}
	return &ParquetStore{dir: dir}, nil
}

// Save writes record to <dataset>_<username>_<unix>.parquet. A session
// without emitted meta-paths still gets a file with one header row so that
// its metadata survives.
func (s *ParquetStore) Save(ctx context.Context, record *SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := sessionPath(s.dir, record, ".parquet")
	if err != nil {
		return err
	}

	base := ParquetRatedMetaPath{
		SessionID:    record.SessionID,
		Dataset:      record.Dataset,
		Username:     record.Username,
		Purpose:      record.Purpose,
		StartNodeIDs: record.StartNodeIDs,
		EndNodeIDs:   record.EndNodeIDs,
		StartedAt:    record.StartedAt.UnixNano(),
		EndedAt:      record.EndedAt.UnixNano(),
	}
	rows := make([]ParquetRatedMetaPath, 0, max(len(record.MetaPaths), 1))
	for _, mp := range record.MetaPaths {
		row := base
		row.ID = int64(mp.ID)
		row.MetaPath = mp.MetaPath
		row.Representation = mp.Representation
		row.Rating = mp.Rating
		row.Rated = mp.Rated
		row.TimeToRate = mp.TimeToRateSeconds
		row.Structural = mp.StructuralValue
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		rows = append(rows, base)
	}

	tmpPath := path + ".tmp"
	if err := parquet.WriteFile(tmpPath, rows); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename parquet file: %w", err)
	}
	return nil
}

// List reads every session file of dataset. An empty dataset lists everything.
func (s *ParquetStore) List(ctx context.Context, dataset string) ([]*SessionRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rated datasets directory: %w", err)
	}

	var records []*SessionRecord
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".parquet" {
			continue
		}
		if dataset != "" && !strings.HasPrefix(entry.Name(), dataset+"_") {
			continue
		}
		rows, err := parquet.ReadFile[ParquetRatedMetaPath](filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		if len(rows) == 0 || (dataset != "" && rows[0].Dataset != dataset) {
			continue
		}
		records = append(records, recordFromRows(rows))
	}
	sortRecords(records)
	return records, nil
}

func recordFromRows(rows []ParquetRatedMetaPath) *SessionRecord {
	first := rows[0]
	r := &SessionRecord{
		SessionID:    first.SessionID,
		Dataset:      first.Dataset,
		Username:     first.Username,
		Purpose:      first.Purpose,
		StartNodeIDs: first.StartNodeIDs,
		EndNodeIDs:   first.EndNodeIDs,
		StartedAt:    time.Unix(0, first.StartedAt).UTC(),
		EndedAt:      time.Unix(0, first.EndedAt).UTC(),
	}
	for _, row := range rows {
		if row.ID == 0 {
			continue
		}
		r.MetaPaths = append(r.MetaPaths, types.RatingOutput{
			ID:                int(row.ID),
			MetaPath:          row.MetaPath,
			Representation:    row.Representation,
			Rating:            row.Rating,
			Rated:             row.Rated,
			TimeToRateSeconds: row.TimeToRate,
			StructuralValue:   row.Structural,
		})
	}
	return r
}

// Close is a no-op; every Save writes a complete file.
func (s *ParquetStore) Close() error { return nil }
