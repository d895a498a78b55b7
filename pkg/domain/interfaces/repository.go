package interfaces

// Repository groups the durable stores used by the pipeline
type Repository interface {
	Cache() CacheRepository
	Ledger() LedgerRepository
	Close() error
}
