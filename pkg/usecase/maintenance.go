package usecase

import (
	"context"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/service/ledger"
	"github.com/m-mizutani/goerr/v2"
)

// LedgerUseCase inspects and resets the processed-document ledger
type LedgerUseCase struct {
	ledger *ledger.Service
}

func NewLedgerUseCase(l *ledger.Service) *LedgerUseCase {
	return &LedgerUseCase{ledger: l}
}

func (uc *LedgerUseCase) List(ctx context.Context) ([]*model.LedgerEntry, error) {
	return uc.ledger.List(ctx)
}

// Clear forgets every processed document so the next run reprocesses them
func (uc *LedgerUseCase) Clear(ctx context.Context) (int, error) {
	return uc.ledger.Clear(ctx)
}

// CacheEvictor removes stale response cache entries
type CacheEvictor interface {
	EvictOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
}

// CacheUseCase maintains the response cache
type CacheUseCase struct {
	evictor CacheEvictor
}

func NewCacheUseCase(evictor CacheEvictor) *CacheUseCase {
	return &CacheUseCase{evictor: evictor}
}

// Evict removes entries older than maxAge
func (uc *CacheUseCase) Evict(ctx context.Context, maxAge time.Duration) (int, error) {
	if uc.evictor == nil {
		return 0, goerr.New("cache is not configured")
	}
	return uc.evictor.EvictOlderThan(ctx, maxAge)
}
