package model

import (
	"time"

	"github.com/db4dd/db4dd/pkg/domain/types"
)

// LedgerEntry records that a document completed the pipeline and where its summary was written
type LedgerEntry struct {
	DocumentKey string             `json:"document_key" firestore:"document_key"`
	OutputPath  string             `json:"output_path" firestore:"output_path"`
	ProcessedAt time.Time          `json:"processed_at" firestore:"processed_at"`
	Status      types.LedgerStatus `json:"status" firestore:"status"`
}
