package types

// Stage names one step of the summarization pipeline
type Stage string

const (
	StageExtract   Stage = "extract"
	StageMini      Stage = "mini"
	StageDeep      Stage = "deep"
	StageSynthesis Stage = "synthesis"
	StageFinal     Stage = "final"
)

func (s Stage) String() string {
	return string(s)
}

// LedgerStatus is the state recorded for a processed document
type LedgerStatus string

const (
	LedgerStatusCompleted LedgerStatus = "completed"
)

// StoreBackend selects the persistence backend for cache and ledger
type StoreBackend string

const (
	StoreSQLite    StoreBackend = "sqlite"
	StoreRedis     StoreBackend = "redis"
	StoreFirestore StoreBackend = "firestore"
	StoreMemory    StoreBackend = "memory"
)

// IsValid checks if the backend is known
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreSQLite, StoreRedis, StoreFirestore, StoreMemory:
		return true
	default:
		return false
	}
}
