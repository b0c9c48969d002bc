package domain

import "time"

type AuditAction string

const (
	AuditContractCreated   AuditAction = "contract_created"
	AuditContractUpdated   AuditAction = "contract_updated"
	AuditContractDeleted   AuditAction = "contract_deleted"
	AuditStatusChanged     AuditAction = "status_changed"
	AuditSentForSignature  AuditAction = "sent_for_signature"
	AuditSigned            AuditAction = "signed"
	AuditCertificateIssued AuditAction = "certificate_issued"
	AuditPDFDownloaded     AuditAction = "pdf_downloaded"
)

// AuditEntry is append-only: entries are never mutated or deleted.
type AuditEntry struct {
	ID          string         `json:"id"`
	ContractID  string         `json:"contract_id"`
	Action      AuditAction    `json:"action"`
	PerformedBy string         `json:"performed_by"`
	PerformedAt time.Time      `json:"performed_at"`
	Details     map[string]any `json:"details,omitempty"`
}
