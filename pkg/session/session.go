// Package session keeps the per-user state of a rating session between
// requests.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/metaexp/pkg/explanation"
	"github.com/soundprediction/metaexp/pkg/learning"
	"github.com/soundprediction/metaexp/pkg/persistence"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side state of one rater working on one dataset.
// Callers hold Lock while touching Learner or Explanation.
type Session struct {
	mu sync.Mutex

	ID           string
	Username     string
	Dataset      string
	Purpose      string
	StartNodeIDs []int64
	EndNodeIDs   []int64
	Learner      *learning.ActiveLearner
	Explanation  *explanation.SimilarityScore
	CreatedAt    time.Time

	closed bool
}

// New creates a session with a fresh id.
func New(username, dataset, purpose string, learner *learning.ActiveLearner) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Username:  username,
		Dataset:   dataset,
		Purpose:   purpose,
		Learner:   learner,
		CreatedAt: time.Now(),
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Record builds the persisted form of the session. The caller holds Lock.
func (s *Session) Record(endedAt time.Time) *persistence.SessionRecord {
	r := &persistence.SessionRecord{
		SessionID:    s.ID,
		Dataset:      s.Dataset,
		Username:     s.Username,
		Purpose:      s.Purpose,
		StartNodeIDs: s.StartNodeIDs,
		EndNodeIDs:   s.EndNodeIDs,
		StartedAt:    s.CreatedAt,
		EndedAt:      endedAt,
	}
	if s.Learner != nil {
		r.MetaPaths = s.Learner.CreateOutput()
	}
	return r
}
