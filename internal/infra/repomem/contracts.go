// Package repomem provides in-memory repository implementations. They
// back local development and tests when no Postgres DSN is configured,
// and honor the same semantics as the database-backed repositories.
package repomem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"signet/internal/domain"
	"signet/internal/usecase"
)

type ContractStore struct {
	mu        sync.RWMutex
	now       usecase.Clock
	contracts map[string]domain.Contract
}

func NewContractStore(now usecase.Clock) *ContractStore {
	if now == nil {
		now = time.Now
	}
	return &ContractStore{
		now:       now,
		contracts: make(map[string]domain.Contract),
	}
}

func (s *ContractStore) FindByID(ctx context.Context, id string) (*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneContract(c)
	return &out, nil
}

func (s *ContractStore) FindAll(ctx context.Context) ([]domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		out = append(out, cloneContract(c))
	}
	sortContracts(out, "created_at desc")
	return out, nil
}

func (s *ContractStore) Create(ctx context.Context, contract domain.Contract) (domain.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(contract)
}

func (s *ContractStore) createLocked(contract domain.Contract) (domain.Contract, error) {
	if _, exists := s.contracts[contract.ID]; exists {
		return domain.Contract{}, domain.ErrConflict
	}
	now := s.now().UTC()
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = now
	}
	if contract.UpdatedAt.IsZero() {
		contract.UpdatedAt = now
	}
	if contract.Version == 0 {
		contract.Version = 1
	}
	s.contracts[contract.ID] = cloneContract(contract)
	return contract, nil
}

func (s *ContractStore) Update(ctx context.Context, id string, expectedVersion int64, patch usecase.ContractPatch) (*domain.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.contracts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if current.Version != expectedVersion {
		return nil, domain.ErrConflict
	}
	updated := cloneContract(current)
	patch.Apply(&updated, s.now())
	s.contracts[id] = cloneContract(updated)
	return &updated, nil
}

func (s *ContractStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.contracts, id)
	return nil
}

func (s *ContractStore) Search(ctx context.Context, filter domain.ContractFilter) ([]domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Contract, 0)
	for _, c := range s.contracts {
		if filter.Matches(c) {
			out = append(out, cloneContract(c))
		}
	}
	sortContracts(out, "created_at desc")
	return out, nil
}

func (s *ContractStore) FindPaginated(ctx context.Context, req domain.PageRequest) (domain.ContractPage, error) {
	s.mu.RLock()
	matched := make([]domain.Contract, 0)
	for _, c := range s.contracts {
		if req.Filter.Matches(c) {
			matched = append(matched, cloneContract(c))
		}
	}
	s.mu.RUnlock()

	sortContracts(matched, req.Sort)

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = 20
	}
	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return domain.ContractPage{
		Items:   matched[start:end],
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasNext: int64(end) < total,
		HasPrev: page > 1,
	}, nil
}

func (s *ContractStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.contracts[id]
	return ok, nil
}

func (s *ContractStore) Count(ctx context.Context, filter domain.ContractFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, c := range s.contracts {
		if filter.Matches(c) {
			n++
		}
	}
	return n, nil
}

func (s *ContractStore) CreateMany(ctx context.Context, contracts []domain.Contract) ([]domain.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := make([]domain.Contract, 0, len(contracts))
	for _, c := range contracts {
		out, err := s.createLocked(c)
		if err != nil {
			return nil, err
		}
		created = append(created, out)
	}
	return created, nil
}

func (s *ContractStore) UpdateMany(ctx context.Context, ids []string, patch usecase.ContractPatch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	now := s.now()
	for _, id := range ids {
		current, ok := s.contracts[id]
		if !ok {
			continue
		}
		next := cloneContract(current)
		patch.Apply(&next, now)
		s.contracts[id] = next
		updated++
	}
	return updated, nil
}

func (s *ContractStore) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := s.contracts[id]; ok {
			delete(s.contracts, id)
			deleted++
		}
	}
	return deleted, nil
}

func cloneContract(c domain.Contract) domain.Contract {
	out := c
	out.Tags = append([]string(nil), c.Tags...)
	out.Parties = append([]domain.Party(nil), c.Parties...)
	out.Signatures = append([]domain.Signature(nil), c.Signatures...)
	if c.Amount != nil {
		v := *c.Amount
		out.Amount = &v
	}
	if c.SignatureExpiresAt != nil {
		t := *c.SignatureExpiresAt
		out.SignatureExpiresAt = &t
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// sortContracts understands "field" or "field desc" for the whitelisted
// sort keys and falls back to newest first.
func sortContracts(contracts []domain.Contract, sortExpr string) {
	field, desc := parseSort(sortExpr)
	sort.SliceStable(contracts, func(i, j int) bool {
		var less bool
		switch field {
		case "title":
			less = strings.ToLower(contracts[i].Title) < strings.ToLower(contracts[j].Title)
		case "updated_at":
			less = contracts[i].UpdatedAt.Before(contracts[j].UpdatedAt)
		default:
			less = contracts[i].CreatedAt.Before(contracts[j].CreatedAt)
		}
		if desc {
			return !less
		}
		return less
	})
}

func parseSort(sortExpr string) (field string, desc bool) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(sortExpr)))
	field = "created_at"
	desc = true
	if len(parts) == 0 {
		return field, desc
	}
	switch parts[0] {
	case "title", "updated_at", "created_at":
		field = parts[0]
		desc = false
	default:
		return field, desc
	}
	if len(parts) > 1 && parts[1] == "desc" {
		desc = true
	}
	return field, desc
}
