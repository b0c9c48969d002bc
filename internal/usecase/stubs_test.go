package usecase

import (
	"context"
	"sync"
	"time"

	"signet/internal/domain"
)

// memContracts is a minimal in-memory ContractRepository for tests. It
// honors version checks and can inject a fixed number of conflicts to
// exercise retry paths.
type memContracts struct {
	mu        sync.Mutex
	m         map[string]domain.Contract
	now       func() time.Time
	conflicts int
}

func newMemContracts(now func() time.Time) *memContracts {
	return &memContracts{m: make(map[string]domain.Contract), now: now}
}

func (r *memContracts) FindByID(ctx context.Context, id string) (*domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := c
	out.Parties = append([]domain.Party(nil), c.Parties...)
	out.Signatures = append([]domain.Signature(nil), c.Signatures...)
	return &out, nil
}

func (r *memContracts) FindAll(ctx context.Context) ([]domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Contract, 0, len(r.m))
	for _, c := range r.m {
		out = append(out, c)
	}
	return out, nil
}

func (r *memContracts) Create(ctx context.Context, c domain.Contract) (domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	r.m[c.ID] = c
	return c, nil
}

func (r *memContracts) Update(ctx context.Context, id string, expectedVersion int64, patch ContractPatch) (*domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return nil, domain.ErrConflict
	}
	c, ok := r.m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.Version != expectedVersion {
		return nil, domain.ErrConflict
	}
	patch.Apply(&c, r.now())
	r.m[id] = c
	out := c
	return &out, nil
}

func (r *memContracts) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.m, id)
	return nil
}

func (r *memContracts) Search(ctx context.Context, filter domain.ContractFilter) ([]domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Contract, 0)
	for _, c := range r.m {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memContracts) FindPaginated(ctx context.Context, req domain.PageRequest) (domain.ContractPage, error) {
	items, _ := r.Search(ctx, req.Filter)
	return domain.ContractPage{Items: items, Total: int64(len(items)), Page: 1, Limit: len(items)}, nil
}

func (r *memContracts) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.m[id]
	return ok, nil
}

func (r *memContracts) Count(ctx context.Context, filter domain.ContractFilter) (int64, error) {
	items, _ := r.Search(ctx, filter)
	return int64(len(items)), nil
}

func (r *memContracts) CreateMany(ctx context.Context, contracts []domain.Contract) ([]domain.Contract, error) {
	out := make([]domain.Contract, 0, len(contracts))
	for _, c := range contracts {
		created, err := r.Create(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

func (r *memContracts) UpdateMany(ctx context.Context, ids []string, patch ContractPatch) (int64, error) {
	var n int64
	for _, id := range ids {
		c, err := r.FindByID(ctx, id)
		if err != nil {
			continue
		}
		if _, err := r.Update(ctx, id, c.Version, patch); err == nil {
			n++
		}
	}
	return n, nil
}

func (r *memContracts) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if err := r.Delete(ctx, id); err == nil {
			n++
		}
	}
	return n, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *memAudit) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return entry, nil
}

func (a *memAudit) ListByContract(ctx context.Context, contractID string) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEntry, 0)
	for _, e := range a.entries {
		if e.ContractID == contractID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *memAudit) actions() []domain.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type memCerts struct {
	mu sync.Mutex
	m  map[string]domain.Certificate
}

func newMemCerts() *memCerts {
	return &memCerts{m: make(map[string]domain.Certificate)}
}

func (c *memCerts) GetByContract(ctx context.Context, contractID string) (*domain.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cert, ok := c.m[contractID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cert, nil
}

func (c *memCerts) Create(ctx context.Context, cert domain.Certificate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[cert.ContractID]; ok {
		return domain.ErrConflict
	}
	c.m[cert.ContractID] = cert
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    int
	lastURL string
}

func (n *recordingNotifier) SendSignatureRequest(ctx context.Context, contract domain.Contract, party domain.Party, signingURL string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	n.lastURL = signingURL
	return nil
}

type denyAllPolicy struct{}

func (denyAllPolicy) Evaluate(ctx context.Context, contract domain.Contract) error {
	return domain.ErrPolicyDenied
}

type stubRenderer struct {
	out []byte
	err error
}

func (r stubRenderer) Render(ctx context.Context, contract domain.Contract, cert domain.Certificate) ([]byte, error) {
	return r.out, r.err
}
