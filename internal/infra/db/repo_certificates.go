package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"signet/internal/domain"
)

type CertificateRepo struct {
	db *gorm.DB
}

func NewCertificateRepo(store *Store) *CertificateRepo {
	return &CertificateRepo{db: store.DB}
}

func (r *CertificateRepo) GetByContract(ctx context.Context, contractID string) (*domain.Certificate, error) {
	var m CertificateModel
	err := r.db.WithContext(ctx).First(&m, "contract_id = ?", contractID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cert, err := fromCertificateModel(m)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepo) Create(ctx context.Context, cert domain.Certificate) error {
	m, err := toCertificateModel(cert)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&m).Error
}
