package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"signet/internal/domain"
	"signet/internal/usecase"
)

type ContractRepo struct {
	db  *gorm.DB
	now usecase.Clock
}

func NewContractRepo(store *Store, now usecase.Clock) *ContractRepo {
	if now == nil {
		now = time.Now
	}
	return &ContractRepo{db: store.DB, now: now}
}

func (r *ContractRepo) FindByID(ctx context.Context, id string) (*domain.Contract, error) {
	var m ContractModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c, err := fromContractModel(m)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContractRepo) FindAll(ctx context.Context) ([]domain.Contract, error) {
	var models []ContractModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return fromContractModels(models)
}

func (r *ContractRepo) Create(ctx context.Context, contract domain.Contract) (domain.Contract, error) {
	now := r.now().UTC()
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = now
	}
	if contract.UpdatedAt.IsZero() {
		contract.UpdatedAt = now
	}
	if contract.Version == 0 {
		contract.Version = 1
	}
	m, err := toContractModel(contract)
	if err != nil {
		return domain.Contract{}, err
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Contract{}, err
	}
	return contract, nil
}

// Update is a compare-and-swap: the row is rewritten only if its stored
// version still matches expectedVersion, otherwise domain.ErrConflict.
func (r *ContractRepo) Update(ctx context.Context, id string, expectedVersion int64, patch usecase.ContractPatch) (*domain.Contract, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, domain.ErrConflict
	}
	updated := *current
	patch.Apply(&updated, r.now())
	m, err := toContractModel(updated)
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).
		Model(&ContractModel{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(contractColumns(m))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrConflict
	}
	return &updated, nil
}

func (r *ContractRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&ContractModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Search pushes the indexed scalar predicates into SQL and finishes the
// free-text and tag matching in Go, where the jsonb columns are already
// decoded.
func (r *ContractRepo) Search(ctx context.Context, filter domain.ContractFilter) ([]domain.Contract, error) {
	var models []ContractModel
	q := applyScalarFilter(r.db.WithContext(ctx).Model(&ContractModel{}), filter)
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	contracts, err := fromContractModels(models)
	if err != nil {
		return nil, err
	}
	out := contracts[:0]
	for _, c := range contracts {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *ContractRepo) FindPaginated(ctx context.Context, req domain.PageRequest) (domain.ContractPage, error) {
	var models []ContractModel
	q := applyScalarFilter(r.db.WithContext(ctx).Model(&ContractModel{}), req.Filter)
	if err := q.Order(orderExpr(req.Sort)).Find(&models).Error; err != nil {
		return domain.ContractPage{}, err
	}
	contracts, err := fromContractModels(models)
	if err != nil {
		return domain.ContractPage{}, err
	}
	matched := contracts[:0]
	for _, c := range contracts {
		if req.Filter.Matches(c) {
			matched = append(matched, c)
		}
	}

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

func (r *ContractRepo) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&ContractModel{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *ContractRepo) Count(ctx context.Context, filter domain.ContractFilter) (int64, error) {
	if filter.Query != "" || len(filter.Tags) > 0 {
		contracts, err := r.Search(ctx, filter)
		if err != nil {
			return 0, err
		}
		return int64(len(contracts)), nil
	}
	var n int64
	err := applyScalarFilter(r.db.WithContext(ctx).Model(&ContractModel{}), filter).Count(&n).Error
	return n, err
}

func (r *ContractRepo) CreateMany(ctx context.Context, contracts []domain.Contract) ([]domain.Contract, error) {
	now := r.now().UTC()
	models := make([]ContractModel, 0, len(contracts))
	created := make([]domain.Contract, 0, len(contracts))
	for _, c := range contracts {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
		if c.Version == 0 {
			c.Version = 1
		}
		m, err := toContractModel(c)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
		created = append(created, c)
	}
	if len(models) == 0 {
		return created, nil
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return nil, err
	}
	return created, nil
}

func (r *ContractRepo) UpdateMany(ctx context.Context, ids []string, patch usecase.ContractPatch) (int64, error) {
	var updated int64
	for _, id := range ids {
		current, err := r.FindByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, err
		}
		if _, err := r.Update(ctx, id, current.Version, patch); err != nil {
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (r *ContractRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&ContractModel{}, "id IN ?", ids)
	return res.RowsAffected, res.Error
}

func fromContractModels(models []ContractModel) ([]domain.Contract, error) {
	contracts := make([]domain.Contract, 0, len(models))
	for _, m := range models {
		c, err := fromContractModel(m)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", m.ID, err)
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

func applyScalarFilter(q *gorm.DB, filter domain.ContractFilter) *gorm.DB {
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	return q
}

// orderExpr whitelists sort columns so request input never reaches the
// ORDER BY clause raw.
func orderExpr(sortExpr string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(sortExpr)))
	if len(parts) == 0 {
		return "created_at DESC"
	}
	var column string
	switch parts[0] {
	case "title", "created_at", "updated_at":
		column = parts[0]
	default:
		return "created_at DESC"
	}
	if len(parts) > 1 && parts[1] == "desc" {
		return column + " DESC"
	}
	return column + " ASC"
}

func contractColumns(m ContractModel) map[string]any {
	return map[string]any{
		"title":                   m.Title,
		"description":             m.Description,
		"content":                 m.Content,
		"type":                    m.Type,
		"category":                m.Category,
		"priority":                m.Priority,
		"tags":                    m.Tags,
		"amount":                  m.Amount,
		"status":                  m.Status,
		"parties":                 m.Parties,
		"signatures":              m.Signatures,
		"signature_request_token": m.SignatureRequestToken,
		"signature_expires_at":    m.SignatureExpiresAt,
		"version":                 m.Version,
		"updated_at":              m.UpdatedAt,
		"completed_at":            m.CompletedAt,
	}
}
