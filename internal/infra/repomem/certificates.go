package repomem

import (
	"context"
	"sync"

	"signet/internal/domain"
)

type CertificateStore struct {
	mu    sync.RWMutex
	certs map[string]domain.Certificate
}

func NewCertificateStore() *CertificateStore {
	return &CertificateStore{certs: make(map[string]domain.Certificate)}
}

func (s *CertificateStore) GetByContract(ctx context.Context, contractID string) (*domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[contractID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cert
	out.Parties = append([]domain.CertificateParty(nil), cert.Parties...)
	return &out, nil
}

func (s *CertificateStore) Create(ctx context.Context, cert domain.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certs[cert.ContractID]; exists {
		return domain.ErrConflict
	}
	stored := cert
	stored.Parties = append([]domain.CertificateParty(nil), cert.Parties...)
	s.certs[cert.ContractID] = stored
	return nil
}
