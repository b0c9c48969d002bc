package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
)

// AuditEmitter appends entries to the append-only trail. Callers treat it
// as fire-and-forget: emit errors are logged, never propagated into the
// operation that triggered them.
type AuditEmitter struct {
	Repo  AuditRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{Repo: repo, Clock: clock}
}

func (e *AuditEmitter) Emit(ctx context.Context, entry domain.AuditEntry) error {
	if e == nil || e.Repo == nil {
		return errors.New("audit repository required")
	}
	if entry.ContractID == "" || entry.Action == "" {
		return errors.New("audit entry missing required fields")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.PerformedBy == "" {
		entry.PerformedBy = "system"
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = e.now().UTC()
	} else {
		entry.PerformedAt = entry.PerformedAt.UTC()
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	_, err := e.Repo.Append(ctx, entry)
	return err
}

func (e *AuditEmitter) EmitContractCreated(ctx context.Context, contractID, actor string) error {
	return e.Emit(ctx, domain.AuditEntry{
		ContractID:  contractID,
		Action:      domain.AuditContractCreated,
		PerformedBy: actor,
	})
}

func (e *AuditEmitter) EmitContractUpdated(ctx context.Context, contractID, actor string, fields []string) error {
	return e.Emit(ctx, domain.AuditEntry{
		ContractID:  contractID,
		Action:      domain.AuditContractUpdated,
		PerformedBy: actor,
		Details:     map[string]any{"fields": fields},
	})
}

func (e *AuditEmitter) EmitContractDeleted(ctx context.Context, contractID, actor string) error {
	return e.Emit(ctx, domain.AuditEntry{
		ContractID:  contractID,
		Action:      domain.AuditContractDeleted,
		PerformedBy: actor,
	})
}

func (e *AuditEmitter) EmitStatusChanged(ctx context.Context, contractID, actor string, from, to domain.ContractStatus) error {
	return e.Emit(ctx, domain.AuditEntry{
		ContractID:  contractID,
		Action:      domain.AuditStatusChanged,
		PerformedBy: actor,
		Details:     map[string]any{"from": string(from), "to": string(to)},
	})
}

func (e *AuditEmitter) EmitSentForSignature(ctx context.Context, contractID, actor, partyID string, expiresAt time.Time) error {
	return e.Emit(ctx, domain.AuditEntry{
		ContractID:  contractID,
		Action:      domain.AuditSentForSignature,
		PerformedBy: actor,
		Details: map[string]any{
			"party_id":   partyID,
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		},
	})
}

func (e *AuditEmitter) EmitSigned(ctx context.Context, contractID, partyID, certificateID string, allSigned bool) error {
	return e.Emit(ctx, domain.AuditEntry{
		ContractID:  contractID,
		Action:      domain.AuditSigned,
		PerformedBy: partyID,
		Details: map[string]any{
			"party_id":       partyID,
			"certificate_id": certificateID,
			"all_signed":     allSigned,
		},
	})
}

func (e *AuditEmitter) EmitCertificateIssued(ctx context.Context, contractID, certificateID string) error {
	return e.Emit(ctx, domain.AuditEntry{
		ContractID:  contractID,
		Action:      domain.AuditCertificateIssued,
		PerformedBy: "system",
		Details:     map[string]any{"certificate_id": certificateID},
	})
}

func (e *AuditEmitter) EmitPDFDownloaded(ctx context.Context, contractID, actor string) error {
	return e.Emit(ctx, domain.AuditEntry{
		ContractID:  contractID,
		Action:      domain.AuditPDFDownloaded,
		PerformedBy: actor,
	})
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
