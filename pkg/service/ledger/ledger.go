package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/interfaces"
	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Service records which documents completed the pipeline. Callers hold Lock for a key while
// checking, processing and marking it; the repository upsert covers writers in other processes.
type Service struct {
	repo interfaces.LedgerRepository
	now  func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(repo interfaces.LedgerRepository, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		now:   time.Now,
		locks: make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lock serializes work on key until the returned function is called
func (s *Service) Lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// IsProcessed reports whether key was marked completed
func (s *Service) IsProcessed(ctx context.Context, key string) (bool, error) {
	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		return false, goerr.Wrap(err, "failed to read ledger", goerr.V(model.DocumentKeyKey, key))
	}
	return entry != nil && entry.Status == types.LedgerStatusCompleted, nil
}

// Get returns the entry for key or nil
func (s *Service) Get(ctx context.Context, key string) (*model.LedgerEntry, error) {
	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read ledger", goerr.V(model.DocumentKeyKey, key))
	}
	return entry, nil
}

// MarkProcessed commits key as completed. Call it only after the summary was written.
func (s *Service) MarkProcessed(ctx context.Context, key, outputPath string) error {
	if key == "" {
		return goerr.New("empty document key")
	}

	entry := &model.LedgerEntry{
		DocumentKey: key,
		OutputPath:  outputPath,
		ProcessedAt: s.now().UTC(),
		Status:      types.LedgerStatusCompleted,
	}
	if err := s.repo.Put(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to mark document processed",
			goerr.V(model.DocumentKeyKey, key),
			goerr.V("output_path", outputPath))
	}

	logging.From(ctx).Debug("document marked processed", "key", key, "output", outputPath)
	return nil
}

// List returns every entry ordered by key
func (s *Service) List(ctx context.Context) ([]*model.LedgerEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list ledger")
	}
	return entries, nil
}

// Clear removes every entry and returns the count
func (s *Service) Clear(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to clear ledger")
	}
	logging.From(ctx).Info("ledger cleared", "removed", n)
	return n, nil
}
