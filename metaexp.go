package metaexp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/metaexp/pkg/config"
	"github.com/soundprediction/metaexp/pkg/explanation"
	"github.com/soundprediction/metaexp/pkg/learning"
	"github.com/soundprediction/metaexp/pkg/loader"
	"github.com/soundprediction/metaexp/pkg/persistence"
	"github.com/soundprediction/metaexp/pkg/ranking"
	"github.com/soundprediction/metaexp/pkg/scoring"
	"github.com/soundprediction/metaexp/pkg/session"
	"github.com/soundprediction/metaexp/pkg/types"
	"github.com/soundprediction/metaexp/pkg/utils"
)

var (
	// ErrInvalidLogin is returned when username or dataset is missing.
	ErrInvalidLogin = errors.New("username and dataset are required")
)

// MetaExp is the interface for meta-path exploration sessions.
type MetaExp interface {
	// Login starts a rating session on a dataset.
	Login(ctx context.Context, req LoginRequest) (*session.Session, error)

	// Logout persists the session's ratings and discards it.
	Logout(ctx context.Context, sessionID string) error

	// AvailableDatasets maps dataset names to descriptions.
	AvailableDatasets() map[string]string

	// SetNodeSets sets the node sets whose similarity is explained.
	SetNodeSets(ctx context.Context, sessionID string, startIDs, endIDs []int64) error

	// NextMetaPaths returns the next batch of meta-paths to rate.
	NextMetaPaths(ctx context.Context, sessionID string, batchSize int) (learning.Batch, error)

	// RateMetaPaths applies a rating submission, all or nothing.
	RateMetaPaths(ctx context.Context, sessionID string, records []types.RatingRecord) error

	// Results computes the similarity score and its contributors.
	Results(ctx context.Context, sessionID string) (*Results, error)

	// ContributingMetaPath returns one contributor in detail.
	ContributingMetaPath(ctx context.Context, sessionID string, id int) (*explanation.MetaPathDetail, error)

	// SimilarNodes returns nodes similar to both node sets.
	SimilarNodes(ctx context.Context, sessionID string) ([]explanation.SimilarNode, error)

	// Close persists every live session and closes the store.
	Close(ctx context.Context) error
}

// LoginRequest identifies the rater and the dataset.
type LoginRequest struct {
	Username string
	Dataset  string
	Purpose  string
}

// Results is the explanation of the current rating.
type Results struct {
	SimilarityScore       float64                            `json:"similarity_score"`
	ContributingMetaPaths []explanation.ContributingMetaPath `json:"contributing_meta_paths"`
}

// Config holds configuration for the MetaExp client.
type Config struct {
	// Mode selects uncertainty sampling (research) or random selection (baseline).
	Mode string
	// Seed drives the baseline selector.
	Seed int64
	// GP configures the uncertainty model.
	GP learning.GPConfig
	// Scoring configures the domain-scoring classifier.
	Scoring scoring.Config
	// TopK is the number of individually explained meta-paths.
	TopK int
	// InstanceLimit is the row limit of instance queries.
	InstanceLimit int
	// ColorSeed seeds contributor colors.
	ColorSeed int64
	// SessionCapacity bounds the number of live sessions.
	SessionCapacity int
}

// DefaultConfig returns the research-mode defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:            config.ModeResearch,
		Seed:            42,
		GP:              learning.DefaultGPConfig(),
		Scoring:         scoring.DefaultConfig(),
		TopK:            explanation.DefaultTopK,
		InstanceLimit:   explanation.DefaultInstanceLimit,
		ColorSeed:       1,
		SessionCapacity: session.DefaultCapacity,
	}
}

// ConfigFromAppConfig maps the application configuration onto client settings.
func ConfigFromAppConfig(cfg *config.Config) *Config {
	return &Config{
		Mode: cfg.Learning.Mode,
		Seed: cfg.Learning.Seed,
		GP: learning.GPConfig{
			LengthScale:    cfg.Learning.LengthScale,
			SignalVariance: cfg.Learning.SignalVariance,
			NoiseVariance:  cfg.Learning.NoiseVariance,
		},
		Scoring: scoring.Config{
			LearningRate: cfg.Learning.LearningRate,
			Epochs:       cfg.Learning.Epochs,
			L2:           cfg.Learning.L2,
		},
		TopK:            cfg.Explanation.TopK,
		InstanceLimit:   cfg.Explanation.InstanceLimit,
		ColorSeed:       cfg.Explanation.ColorSeed,
		SessionCapacity: cfg.Session.Capacity,
	}
}

// datasetModel is the read-only state shared by all sessions of a dataset.
type datasetModel struct {
	graph  *ranking.Graph
	scorer *scoring.DomainScoring
}

// Client is the main implementation of the MetaExp interface.
type Client struct {
	datasets *loader.Dispatcher
	store    persistence.Store
	sessions *session.LRURepository
	config   *Config
	logger   *slog.Logger

	mu     sync.Mutex
	models map[string]*datasetModel
}

var _ MetaExp = (*Client)(nil)

// NewClient creates a new MetaExp client.
func NewClient(datasets *loader.Dispatcher, store persistence.Store, cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		datasets: datasets,
		store:    store,
		config:   cfg,
		logger:   logger,
		models:   make(map[string]*datasetModel),
	}
	repo, err := session.NewLRURepository(cfg.SessionCapacity, c.persistEvicted)
	if err != nil {
		return nil, err
	}
	c.sessions = repo
	return c, nil
}

// Sessions returns the live session repository.
func (c *Client) Sessions() session.Repository { return c.sessions }

func (c *Client) persistEvicted(s *session.Session) {
	// Runs inside the cache's eviction callback; a panic must not escape into it.
	defer utils.RecoverWithCallback(func(err error) {
		c.logger.Error("panic while persisting evicted session", "session_id", s.ID, "error", err)
	})
	if err := c.persist(context.Background(), s); err != nil {
		c.logger.Error("failed to persist evicted session",
			"session_id", s.ID,
			"dataset", s.Dataset,
			"error", err)
		return
	}
	c.logger.Info("evicted session persisted", "session_id", s.ID, "dataset", s.Dataset)
}

func (c *Client) persist(ctx context.Context, s *session.Session) error {
	if c.store == nil {
		return nil
	}
	s.Lock()
	record := s.Record(time.Now())
	s.Unlock()
	return c.store.Save(ctx, record)
}

// model returns the cached ranking graph and fitted scorer of dataset.
func (c *Client) model(ctx context.Context, l loader.Loader) (*datasetModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.models[l.Name()]; ok {
		return m, nil
	}
	m, err := c.buildModel(ctx, l)
	if err != nil {
		return nil, err
	}
	c.models[l.Name()] = m
	return m, nil
}

func (c *Client) buildModel(ctx context.Context, l loader.Loader) (*datasetModel, error) {
	g, err := l.LoadRankingGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking graph: %w", err)
	}
	scorer := scoring.New(scoring.WithConfig(c.config.Scoring), scoring.WithLogger(c.logger))
	if err := scorer.Fit(g); err != nil {
		return nil, fmt.Errorf("failed to fit domain scoring: %w", err)
	}
	c.logger.Debug("dataset model built", "dataset", l.Name(), "meta_paths", g.Len())
	return &datasetModel{graph: g, scorer: scorer}, nil
}

func (c *Client) newLearner(pool []*types.MetaPath, m *datasetModel) (*learning.ActiveLearner, error) {
	opts := []learning.Option{
		learning.WithGPConfig(c.config.GP),
		learning.WithPrior(m.scorer),
		learning.WithLogger(c.logger),
	}
	if c.config.Mode == config.ModeBaseline {
		opts = append(opts, learning.WithStrategy(learning.RandomSampling(c.config.Seed)))
	}
	return learning.NewActiveLearner(pool, opts...)
}

func (c *Client) newExplanation(s *session.Session) *explanation.SimilarityScore {
	return explanation.NewSimilarityScore(s.Learner, s.Dataset, s.StartNodeIDs, s.EndNodeIDs,
		explanation.WithTopK(c.config.TopK),
		explanation.WithInstanceLimit(c.config.InstanceLimit),
		explanation.WithColorGenerator(explanation.NewColorGenerator(c.config.ColorSeed)),
		explanation.WithLogger(c.logger))
}

// Login starts a rating session.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*session.Session, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Dataset) == "" {
		return nil, ErrInvalidLogin
	}
	l, err := c.datasets.GetLoader(req.Dataset)
	if err != nil {
		return nil, err
	}
	m, err := c.model(ctx, l)
	if err != nil {
		return nil, err
	}
	pool, err := l.LoadMetaPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta-paths: %w", err)
	}
	learner, err := c.newLearner(pool, m)
	if err != nil {
		return nil, err
	}

	s := session.New(req.Username, req.Dataset, req.Purpose, learner)
	s.Explanation = c.newExplanation(s)
	c.sessions.Add(s)

	c.logger.Info("session started",
		"session_id", s.ID,
		"username", s.Username,
		"dataset", s.Dataset,
		"pool_size", learner.PoolSize())
	return s, nil
}

// Logout persists and discards the session.
func (c *Client) Logout(ctx context.Context, sessionID string) error {
	s, err := c.sessions.Delete(sessionID)
	if err != nil {
		return err
	}
	if err := c.persist(ctx, s); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	c.logger.Info("session ended", "session_id", s.ID, "dataset", s.Dataset)
	return nil
}

// AvailableDatasets maps dataset names to descriptions.
func (c *Client) AvailableDatasets() map[string]string {
	return c.datasets.GetAvailableDatasets()
}

// SetNodeSets replaces the compared node sets. For datasets whose pool
// depends on the node sets, the pool is reloaded as long as nothing was
// emitted yet.
func (c *Client) SetNodeSets(ctx context.Context, sessionID string, startIDs, endIDs []int64) error {
	s, err := c.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()

	s.StartNodeIDs = append([]int64(nil), startIDs...)
	s.EndNodeIDs = append([]int64(nil), endIDs...)

	l, err := c.datasets.GetLoader(s.Dataset)
	if err != nil {
		return err
	}
	if scoped, ok := l.(loader.NodeSetScoped); ok && s.Learner.Remaining() == s.Learner.PoolSize() {
		nl := scoped.ForNodeSets(startIDs, endIDs)
		m, err := c.buildModel(ctx, nl)
		if err != nil {
			return err
		}
		pool, err := nl.LoadMetaPaths(ctx)
		if err != nil {
			return fmt.Errorf("failed to load meta-paths: %w", err)
		}
		learner, err := c.newLearner(pool, m)
		if err != nil {
			return err
		}
		s.Learner = learner
	}
	s.Explanation = c.newExplanation(s)
	return nil
}

// NextMetaPaths returns the next batch to rate.
func (c *Client) NextMetaPaths(ctx context.Context, sessionID string, batchSize int) (learning.Batch, error) {
	s, err := c.sessions.Get(sessionID)
	if err != nil {
		return learning.Batch{}, err
	}
	s.Lock()
	defer s.Unlock()
	return s.Learner.GetNext(batchSize)
}

// RateMetaPaths applies ratings.
func (c *Client) RateMetaPaths(ctx context.Context, sessionID string, records []types.RatingRecord) error {
	s, err := c.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	if err := s.Learner.Update(records); err != nil {
		c.logger.Warn("rating submission rejected", "session_id", s.ID, "error", err)
		return err
	}
	return nil
}

// Results recomputes the explanation from the current rating.
func (c *Client) Results(ctx context.Context, sessionID string) (*Results, error) {
	s, err := c.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.Lock()
	defer s.Unlock()
	if err := s.Explanation.Refresh(); err != nil {
		return nil, err
	}
	return &Results{
		SimilarityScore:       s.Explanation.SimilarityScore(),
		ContributingMetaPaths: s.Explanation.ContributingMetaPaths(),
	}, nil
}

// ContributingMetaPath returns one contributor, computing results first if
// they were never requested.
func (c *Client) ContributingMetaPath(ctx context.Context, sessionID string, id int) (*explanation.MetaPathDetail, error) {
	s, err := c.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.Lock()
	defer s.Unlock()
	if !s.Explanation.Computed() {
		if err := s.Explanation.Refresh(); err != nil {
			return nil, err
		}
	}
	return s.Explanation.ContributingMetaPath(id)
}

// SimilarNodes returns nodes similar to both node sets.
func (c *Client) SimilarNodes(ctx context.Context, sessionID string) ([]explanation.SimilarNode, error) {
	if _, err := c.sessions.Get(sessionID); err != nil {
		return nil, err
	}
	return explanation.SimilarNodes(), nil
}

// DomainScores fits the dataset's scorer and returns every meta-path with its
// domain value set, plus the maximal chains of the ranking graph.
func (c *Client) DomainScores(ctx context.Context, dataset string) ([]*types.MetaPath, [][]*types.MetaPath, error) {
	l, err := c.datasets.GetLoader(dataset)
	if err != nil {
		return nil, nil, err
	}
	m, err := c.model(ctx, l)
	if err != nil {
		return nil, nil, err
	}
	pool, err := l.LoadMetaPaths(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := m.scorer.ScoreAll(pool); err != nil {
		return nil, nil, err
	}
	return pool, m.graph.TransitiveClosures(), nil
}

// Close persists every live session and closes the store.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	var logouts []func() error
	for _, id := range c.sessions.Keys() {
		logouts = append(logouts, func() error { return c.Logout(ctx, id) })
	}
	for _, err := range utils.SemaphoreGather(ctx, 0, logouts...) {
		if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
