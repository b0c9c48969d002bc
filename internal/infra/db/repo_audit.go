package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"signet/internal/domain"
)

type AuditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{db: store.DB}
}

func (r *AuditRepo) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	m, err := toAuditModel(entry)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AuditEntry{}, err
	}
	return entry, nil
}

func (r *AuditRepo) ListByContract(ctx context.Context, contractID string) ([]domain.AuditEntry, error) {
	var models []AuditEntryModel
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("performed_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entries := make([]domain.AuditEntry, 0, len(models))
	for _, m := range models {
		e, err := fromAuditModel(m)
		if err != nil {
			return nil, fmt.Errorf("audit entry %s: %w", m.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
