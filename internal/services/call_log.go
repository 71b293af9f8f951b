package services

import (
	"sync"
	"time"

	"launchpad-ai-pipeline/internal/models"
)

// CallLog is the in-memory, append-only record of model calls. It is handed
// to the model client as a models.CallRecorder and to the handlers for the
// log view. Appends from concurrent runs are lock-guarded; entries beyond the
// configured limit evict the oldest first.
type CallLog struct {
	mu      sync.Mutex
	limit   int
	entries []models.CallLogEntry
}

func NewCallLog(limit int) *CallLog {
	return &CallLog{limit: limit}
}

func (log *CallLog) Append(entry models.CallLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	log.entries = append(log.entries, entry)
	if log.limit > 0 && len(log.entries) > log.limit {
		overflow := len(log.entries) - log.limit
		log.entries = append(log.entries[:0:0], log.entries[overflow:]...)
	}
}

// Entries returns a snapshot copy in append order.
func (log *CallLog) Entries() []models.CallLogEntry {
	log.mu.Lock()
	defer log.mu.Unlock()

	snapshot := make([]models.CallLogEntry, len(log.entries))
	copy(snapshot, log.entries)
	return snapshot
}

func (log *CallLog) Len() int {
	log.mu.Lock()
	defer log.mu.Unlock()
	return len(log.entries)
}
