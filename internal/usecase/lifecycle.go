package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"signet/internal/domain"
)

type PartyInput struct {
	ID                string `json:"id"`
	Role              string `json:"role"`
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	Company           string `json:"company"`
	SignatureRequired bool   `json:"signature_required"`
}

type ContractInput struct {
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description"`
	Content     string       `json:"content"`
	Type        string       `json:"type"`
	Category    string       `json:"category"`
	Priority    string       `json:"priority"`
	Tags        []string     `json:"tags"`
	Amount      *float64     `json:"amount" validate:"omitempty,gte=0"`
	Parties     []PartyInput `json:"parties" validate:"required,min=1,dive"`
}

type ContractUpdateInput struct {
	Title       *string      `json:"title" validate:"omitempty,min=1"`
	Description *string      `json:"description"`
	Content     *string      `json:"content"`
	Type        *string      `json:"type"`
	Category    *string      `json:"category"`
	Priority    *string      `json:"priority"`
	Tags        []string     `json:"tags"`
	Amount      *float64     `json:"amount" validate:"omitempty,gte=0"`
	Parties     []PartyInput `json:"parties" validate:"omitempty,min=1,dive"`
}

// Lifecycle owns the contract workflow: creation, partial updates, the
// status state machine, and the deletion policy. Contracts are mutated
// only through it, never directly by transport code.
type Lifecycle struct {
	Contracts ContractRepository
	Audit     *AuditEmitter
	Clock     Clock
	Logger    zerolog.Logger

	validate *validator.Validate
}

func NewLifecycle(contracts ContractRepository, audit *AuditEmitter, clock Clock, logger zerolog.Logger) *Lifecycle {
	if clock == nil {
		clock = time.Now
	}
	return &Lifecycle{
		Contracts: contracts,
		Audit:     audit,
		Clock:     clock,
		Logger:    logger,
		validate:  validator.New(),
	}
}

func (l *Lifecycle) Create(ctx context.Context, input ContractInput, actor string) (domain.Contract, error) {
	if err := l.validateInput(input); err != nil {
		return domain.Contract{}, err
	}
	now := l.Clock().UTC()
	contract := domain.Contract{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Content:     input.Content,
		Type:        input.Type,
		Category:    input.Category,
		Priority:    input.Priority,
		Tags:        input.Tags,
		Amount:      input.Amount,
		Status:      domain.StatusDraft,
		Parties:     buildParties(input.Parties),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := l.Contracts.Create(ctx, contract)
	if err != nil {
		return domain.Contract{}, err
	}
	l.emit(ctx, func() error { return l.Audit.EmitContractCreated(ctx, created.ID, actor) })
	return created, nil
}

func (l *Lifecycle) CreateMany(ctx context.Context, inputs []ContractInput, actor string) ([]domain.Contract, error) {
	now := l.Clock().UTC()
	contracts := make([]domain.Contract, 0, len(inputs))
	for i, input := range inputs {
		if err := l.validateInput(input); err != nil {
			return nil, fmt.Errorf("contract %d: %w", i, err)
		}
		contracts = append(contracts, domain.Contract{
			ID:          uuid.NewString(),
			Title:       input.Title,
			Description: input.Description,
			Content:     input.Content,
			Type:        input.Type,
			Category:    input.Category,
			Priority:    input.Priority,
			Tags:        input.Tags,
			Amount:      input.Amount,
			Status:      domain.StatusDraft,
			Parties:     buildParties(input.Parties),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	created, err := l.Contracts.CreateMany(ctx, contracts)
	if err != nil {
		return nil, err
	}
	for _, c := range created {
		id := c.ID
		l.emit(ctx, func() error { return l.Audit.EmitContractCreated(ctx, id, actor) })
	}
	return created, nil
}

func (l *Lifecycle) Get(ctx context.Context, id string) (*domain.Contract, error) {
	return l.Contracts.FindByID(ctx, id)
}

func (l *Lifecycle) Search(ctx context.Context, filter domain.ContractFilter) ([]domain.Contract, error) {
	if filter.IsZero() {
		return l.Contracts.FindAll(ctx)
	}
	return l.Contracts.Search(ctx, filter)
}

func (l *Lifecycle) Page(ctx context.Context, req domain.PageRequest) (domain.ContractPage, error) {
	return l.Contracts.FindPaginated(ctx, req)
}

func (l *Lifecycle) Update(ctx context.Context, id string, input ContractUpdateInput, actor string) (*domain.Contract, error) {
	if err := l.validateInput(input); err != nil {
		return nil, err
	}
	current, err := l.Contracts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Parties != nil && signingBegun(current.Status) {
		return nil, domain.ErrPartiesLocked
	}

	patch := ContractPatch{
		Title:       input.Title,
		Description: input.Description,
		Content:     input.Content,
		Type:        input.Type,
		Category:    input.Category,
		Priority:    input.Priority,
		Tags:        input.Tags,
		Amount:      input.Amount,
	}
	if input.Parties != nil {
		patch.Parties = buildParties(input.Parties)
	}
	updated, err := l.Contracts.Update(ctx, id, current.Version, patch)
	if err != nil {
		return nil, err
	}
	l.emit(ctx, func() error {
		return l.Audit.EmitContractUpdated(ctx, id, actor, patchedFields(input))
	})
	return updated, nil
}

// ChangeStatus applies a workflow transition, failing without mutation if
// the move is not in the transition table. Entering completed stamps
// CompletedAt exactly once.
func (l *Lifecycle) ChangeStatus(ctx context.Context, id string, target domain.ContractStatus, actor string) (*domain.Contract, error) {
	if !target.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", target))
	}
	for attempt := 0; ; attempt++ {
		current, err := l.Contracts.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !current.Status.CanTransitionTo(target) {
			return nil, &domain.InvalidTransitionError{From: current.Status, To: target}
		}
		patch := ContractPatch{Status: &target}
		if target == domain.StatusCompleted && current.CompletedAt == nil {
			completedAt := l.Clock().UTC()
			patch.CompletedAt = &completedAt
		}
		updated, err := l.Contracts.Update(ctx, id, current.Version, patch)
		if errors.Is(err, domain.ErrConflict) && attempt < 2 {
			continue
		}
		if err != nil {
			return nil, err
		}
		l.emit(ctx, func() error {
			return l.Audit.EmitStatusChanged(ctx, id, actor, current.Status, target)
		})
		return updated, nil
	}
}

// Delete enforces the record-retention invariant: a completed contract is
// the legal record and can never be deleted.
func (l *Lifecycle) Delete(ctx context.Context, id, actor string) error {
	current, err := l.Contracts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == domain.StatusCompleted {
		return domain.ErrCompletedImmutable
	}
	if err := l.Contracts.Delete(ctx, id); err != nil {
		return err
	}
	l.emit(ctx, func() error { return l.Audit.EmitContractDeleted(ctx, id, actor) })
	return nil
}

func (l *Lifecycle) DeleteMany(ctx context.Context, ids []string, actor string) (int64, error) {
	for _, id := range ids {
		current, err := l.Contracts.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return 0, err
		}
		if current.Status == domain.StatusCompleted {
			return 0, fmt.Errorf("contract %s: %w", id, domain.ErrCompletedImmutable)
		}
	}
	deleted, err := l.Contracts.DeleteMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		contractID := id
		l.emit(ctx, func() error { return l.Audit.EmitContractDeleted(ctx, contractID, actor) })
	}
	return deleted, nil
}

func (l *Lifecycle) validateInput(input any) error {
	err := l.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		field := first.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		return domain.NewValidationError(strings.ToLower(field), validationMessage(first))
	}
	return domain.NewValidationError("input", err.Error())
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gte":
		return "must not be negative"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func buildParties(inputs []PartyInput) []domain.Party {
	parties := make([]domain.Party, 0, len(inputs))
	for _, p := range inputs {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		parties = append(parties, domain.Party{
			ID:                id,
			Role:              p.Role,
			Name:              p.Name,
			Email:             p.Email,
			Company:           p.Company,
			SignatureRequired: p.SignatureRequired,
		})
	}
	return parties
}

func signingBegun(status domain.ContractStatus) bool {
	switch status {
	case domain.StatusPendingSignature, domain.StatusPartiallySigned, domain.StatusCompleted:
		return true
	}
	return false
}

func patchedFields(input ContractUpdateInput) []string {
	fields := make([]string, 0, 8)
	if input.Title != nil {
		fields = append(fields, "title")
	}
	if input.Description != nil {
		fields = append(fields, "description")
	}
	if input.Content != nil {
		fields = append(fields, "content")
	}
	if input.Type != nil {
		fields = append(fields, "type")
	}
	if input.Category != nil {
		fields = append(fields, "category")
	}
	if input.Priority != nil {
		fields = append(fields, "priority")
	}
	if input.Tags != nil {
		fields = append(fields, "tags")
	}
	if input.Amount != nil {
		fields = append(fields, "amount")
	}
	if input.Parties != nil {
		fields = append(fields, "parties")
	}
	return fields
}

func (l *Lifecycle) emit(ctx context.Context, fn func() error) {
	if l.Audit == nil {
		return
	}
	if err := fn(); err != nil {
		l.Logger.Warn().Err(err).Msg("audit emit failed")
	}
}
