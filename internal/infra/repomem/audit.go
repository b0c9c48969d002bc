package repomem

import (
	"context"
	"sort"
	"sync"

	"signet/internal/domain"
)

// AuditStore is an append-only in-memory audit trail. Nothing ever
// removes entries.
type AuditStore struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, cloneEntry(entry))
	return entry, nil
}

func (s *AuditStore) ListByContract(ctx context.Context, contractID string) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEntry, 0)
	for _, e := range s.entries {
		if e.ContractID == contractID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PerformedAt.Before(out[j].PerformedAt)
	})
	return out, nil
}

func cloneEntry(e domain.AuditEntry) domain.AuditEntry {
	out := e
	if e.Details != nil {
		out.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			out.Details[k] = v
		}
	}
	return out
}
