package repository

import (
	"context"
	"sync"
	"time"

	"villasole/internal/models"
)

type memoryEntry struct {
	entries   []models.ExternalOccupancy
	expiresAt time.Time
}

// MemorySnapshotRepository is the in-process fallback used when redis is
// unavailable. Snapshots expire on read, mirroring the redis TTL.
type MemorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[int64]memoryEntry
	ttl       time.Duration
}

func NewMemorySnapshotRepository(ttl time.Duration) *MemorySnapshotRepository {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultSnapshotTTL) * time.Second
	}
	return &MemorySnapshotRepository{
		snapshots: make(map[int64]memoryEntry),
		ttl:       ttl,
	}
}

func (r *MemorySnapshotRepository) SetSnapshot(_ context.Context, sourceID int64, entries []models.ExternalOccupancy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := append([]models.ExternalOccupancy(nil), entries...)
	r.snapshots[sourceID] = memoryEntry{entries: copied, expiresAt: time.Now().Add(r.ttl)}
	return nil
}

func (r *MemorySnapshotRepository) GetSnapshot(_ context.Context, sourceID int64) ([]models.ExternalOccupancy, error) {
	r.mu.RLock()
	entry, ok := r.snapshots[sourceID]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		r.mu.Lock()
		delete(r.snapshots, sourceID)
		r.mu.Unlock()
		return nil, nil
	}
	return append([]models.ExternalOccupancy(nil), entry.entries...), nil
}

func (r *MemorySnapshotRepository) GetAllSnapshots(_ context.Context) ([]models.ExternalOccupancy, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var all []models.ExternalOccupancy
	for id, entry := range r.snapshots {
		if now.After(entry.expiresAt) {
			delete(r.snapshots, id)
			continue
		}
		all = append(all, entry.entries...)
	}
	return all, nil
}

func (r *MemorySnapshotRepository) ClearSnapshot(_ context.Context, sourceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, sourceID)
	return nil
}
