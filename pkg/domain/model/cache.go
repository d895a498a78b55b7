package model

import "time"

// CacheEntry is a stored LLM response keyed by request fingerprint. Entries are never rewritten.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint" firestore:"fingerprint"`
	Model       string    `json:"model" firestore:"model"`
	Response    string    `json:"response" firestore:"response"`
	StoredAt    time.Time `json:"stored_at" firestore:"stored_at"`
}
