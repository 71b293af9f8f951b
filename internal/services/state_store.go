package services

import (
	"context"
	"sync"
	"time"

	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"
)

// StateStore persists run state and streams per-run agent updates. Redis
// backs it in deployments; the in-memory store covers single-process and
// demo setups.
type StateStore interface {
	PublishAgentUpdate(ctx context.Context, update *models.AgentUpdate) error
	StoreRunState(ctx context.Context, run *models.PipelineRun) error
	GetRunState(ctx context.Context, runID string) (*models.PipelineRun, error)
	GetAgentUpdates(ctx context.Context, runID string, limit int) ([]models.AgentUpdate, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// MemoryStateStore keeps run state in process memory with TTL-based expiry.
type MemoryStateStore struct {
	mu      sync.RWMutex
	runs    map[string]memoryRunEntry
	updates map[string][]models.AgentUpdate
	ttl     time.Duration
	logger  *logger.Logger
}

type memoryRunEntry struct {
	run       *models.PipelineRun
	expiresAt time.Time
}

const memoryUpdateCap = 256

func NewMemoryStateStore(ttl time.Duration, log *logger.Logger) *MemoryStateStore {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	log.Info("In-memory state store initialized", "ttl", ttl.String())
	return &MemoryStateStore{
		runs:    make(map[string]memoryRunEntry),
		updates: make(map[string][]models.AgentUpdate),
		ttl:     ttl,
		logger:  log,
	}
}

func (store *MemoryStateStore) PublishAgentUpdate(ctx context.Context, update *models.AgentUpdate) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	updates := append(store.updates[update.RunID], *update)
	if len(updates) > memoryUpdateCap {
		updates = updates[len(updates)-memoryUpdateCap:]
	}
	store.updates[update.RunID] = updates
	return nil
}

func (store *MemoryStateStore) StoreRunState(ctx context.Context, run *models.PipelineRun) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.pruneLocked()
	store.runs[run.ID] = memoryRunEntry{run: run, expiresAt: time.Now().Add(store.ttl)}
	return nil
}

func (store *MemoryStateStore) GetRunState(ctx context.Context, runID string) (*models.PipelineRun, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	entry, ok := store.runs[runID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, models.ErrRunNotFound.WithMetadata("run_id", runID)
	}
	return entry.run, nil
}

func (store *MemoryStateStore) GetAgentUpdates(ctx context.Context, runID string, limit int) ([]models.AgentUpdate, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	updates := store.updates[runID]
	if limit > 0 && len(updates) > limit {
		updates = updates[len(updates)-limit:]
	}
	snapshot := make([]models.AgentUpdate, len(updates))
	copy(snapshot, updates)
	return snapshot, nil
}

// pruneLocked drops expired runs and their update history. Caller holds mu.
func (store *MemoryStateStore) pruneLocked() {
	now := time.Now()
	for runID, entry := range store.runs {
		if now.After(entry.expiresAt) {
			delete(store.runs, runID)
			delete(store.updates, runID)
		}
	}
}

func (store *MemoryStateStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (store *MemoryStateStore) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.runs = make(map[string]memoryRunEntry)
	store.updates = make(map[string][]models.AgentUpdate)
	return nil
}
