package memory

import (
	"github.com/db4dd/db4dd/pkg/domain/interfaces"
)

// Memory keeps cache and ledger in process memory. Nothing survives a restart.
type Memory struct {
	cache  *cacheRepository
	ledger *ledgerRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		cache:  newCacheRepository(),
		ledger: newLedgerRepository(),
	}
}

func (m *Memory) Cache() interfaces.CacheRepository {
	return m.cache
}

func (m *Memory) Ledger() interfaces.LedgerRepository {
	return m.ledger
}

func (m *Memory) Close() error {
	return nil
}
