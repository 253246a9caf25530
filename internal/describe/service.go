package describe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/quotecalc/internal/storage"
)

// HistoryKey is the storage key of the description history unless WithHistoryKey overrides it.
const HistoryKey = "laborDescriptions"

// MaxHistory bounds the number of stored descriptions.
const MaxHistory = 50

// Description is one generated labor description.
type Description struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service generates descriptions and keeps the most recent ones. It is safe for concurrent use.
type Service struct {
	gen    Generator
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
	key    string

	mu      sync.Mutex
	history []Description
}

// Option configures a Service.
type Option func(*Service)

// WithHistoryKey stores the history under key instead of HistoryKey.
func WithHistoryKey(key string) Option {
	return func(s *Service) { s.key = key }
}

// NewService loads the stored history. A history that cannot be read is logged and
// treated as empty.
func NewService(ctx context.Context, gen Generator, store storage.Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = storage.Unavailable{}
	}
	s := &Service{gen: gen, store: store, logger: logger, now: time.Now, key: HistoryKey, history: []Description{}}
	for _, opt := range opts {
		opt(s)
	}

	raw, ok, err := store.Get(ctx, s.key)
	switch {
	case err != nil:
		logger.Warn("description history unavailable", zap.Error(err))
	case ok && strings.TrimSpace(raw) != "":
		var history []Description
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			logger.Warn("decode description history", zap.Error(err))
			break
		}
		if history != nil {
			s.history = history
		}
	}
	return s
}

func (s *Service) Generator() Generator { return s.gen }

// Describe generates a description for the work notes in input and records it.
func (s *Service) Describe(ctx context.Context, input string) (Description, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Description{}, ErrEmptyInput
	}

	start := s.now()
	text, err := s.gen.Generate(ctx, Prompt(input))
	if err != nil {
		s.logger.Error("generate labor description", zap.String("model", s.gen.Model()), zap.Error(err))
		return Description{}, fmt.Errorf("generate description: %w", err)
	}

	d := Description{
		ID:        uuid.NewString(),
		Input:     input,
		Text:      text,
		Model:     s.gen.Model(),
		CreatedAt: s.now(),
	}
	s.logger.Info("labor description generated",
		zap.String("id", d.ID),
		zap.String("model", d.Model),
		zap.Duration("elapsed", d.CreatedAt.Sub(start)),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]Description{d}, s.history...)
	if len(s.history) > MaxHistory {
		s.history = s.history[:MaxHistory]
	}
	s.persist(ctx)
	return d, nil
}

// History returns the stored descriptions, newest first.
func (s *Service) History() []Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Description(nil), s.history...)
}

func (s *Service) persist(ctx context.Context) {
	data, err := json.Marshal(s.history)
	if err != nil {
		s.logger.Error("encode description history", zap.Error(err))
		return
	}
	if err := s.store.Set(context.WithoutCancel(ctx), s.key, string(data)); err != nil {
		s.logger.Warn("persist description history", zap.Error(err))
	}
}
