package usecase

import (
	"github.com/db4dd/db4dd/pkg/service/ledger"
	"github.com/db4dd/db4dd/pkg/service/output"
)

type UseCases struct {
	Summarize *SummarizeUseCase
	Ledger    *LedgerUseCase
	Cache     *CacheUseCase
}

// New wires the use cases sharing one ledger
func New(summarizer Summarizer, ledgerSvc *ledger.Service, outputSvc *output.Service, evictor CacheEvictor, opts ...Option) *UseCases {
	return &UseCases{
		Summarize: NewSummarizeUseCase(summarizer, ledgerSvc, outputSvc, opts...),
		Ledger:    NewLedgerUseCase(ledgerSvc),
		Cache:     NewCacheUseCase(evictor),
	}
}
