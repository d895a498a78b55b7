package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/interfaces"
	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Service is the response cache in front of the LLM. A disabled service misses every lookup
// and ignores stores.
type Service struct {
	repo    interfaces.CacheRepository
	enabled bool
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
	stores atomic.Int64
}

// Stats counts cache activity since the service was created
type Stats struct {
	Enabled bool  `json:"enabled"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Stores  int64 `json:"stores"`
}

type Option func(*Service)

// WithDisabled turns the cache into a no-op
func WithDisabled() Option {
	return func(s *Service) {
		s.enabled = false
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(repo interfaces.CacheRepository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		enabled: repo != nil,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether lookups can hit
func (s *Service) Enabled() bool {
	return s.enabled
}

type fingerprintInput struct {
	Model        string  `json:"model"`
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	Schema       string  `json:"schema"`
}

// Fingerprint is the sha256 hex digest of the canonical JSON of the request's semantic content.
// Line endings and surrounding whitespace of the prompts do not affect it.
func Fingerprint(modelName string, req model.LLMRequest) string {
	in := fingerprintInput{
		Model:        modelName,
		Prompt:       normalizePrompt(req.Prompt),
		SystemPrompt: normalizePrompt(req.SystemPrompt),
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Schema:       req.Schema,
	}
	// Struct fields marshal in declaration order, which keeps the encoding canonical.
	raw, _ := json.Marshal(in)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func normalizePrompt(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// Lookup returns the cached response for fingerprint
func (s *Service) Lookup(ctx context.Context, fingerprint string) (string, bool, error) {
	if !s.enabled {
		return "", false, nil
	}

	entry, err := s.repo.Get(ctx, fingerprint)
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to look up cache", goerr.V("fingerprint", fingerprint))
	}
	if entry == nil {
		s.misses.Add(1)
		return "", false, nil
	}

	s.hits.Add(1)
	return entry.Response, true, nil
}

// Store saves a response. An existing entry for the fingerprint is kept unchanged.
func (s *Service) Store(ctx context.Context, fingerprint, modelName, response string) error {
	if !s.enabled {
		return nil
	}

	created, err := s.repo.Put(ctx, &model.CacheEntry{
		Fingerprint: fingerprint,
		Model:       modelName,
		Response:    response,
		StoredAt:    s.now().UTC(),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to store cache entry", goerr.V("fingerprint", fingerprint))
	}
	if created {
		s.stores.Add(1)
	} else {
		logging.From(ctx).Debug("cache entry already exists", "fingerprint", fingerprint)
	}
	return nil
}

// EvictOlderThan deletes entries stored more than maxAge ago
func (s *Service) EvictOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	if maxAge <= 0 {
		return 0, goerr.New("max age must be positive", goerr.V("max_age", maxAge))
	}

	cutoff := s.now().Add(-maxAge)
	n, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return n, goerr.Wrap(err, "failed to evict cache entries", goerr.V("cutoff", cutoff))
	}

	logging.From(ctx).Info("evicted cache entries", "count", n, "cutoff", cutoff)
	return n, nil
}

// Stats returns the activity counters
func (s *Service) Stats() Stats {
	return Stats{
		Enabled: s.enabled,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Stores:  s.stores.Load(),
	}
}
