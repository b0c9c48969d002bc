package db

import (
	"encoding/json"
	"fmt"
	"time"

	"signet/internal/domain"
)

// Structured slices live in jsonb columns. The filterable scalar fields
// get their own columns so the common lookups stay indexed.
type ContractModel struct {
	ID                    string     `gorm:"primaryKey;size:64"`
	Title                 string     `gorm:"size:512;not null"`
	Description           string     `gorm:"type:text"`
	Content               string     `gorm:"type:text"`
	Type                  string     `gorm:"size:64;index"`
	Category              string     `gorm:"size:64;index"`
	Priority              string     `gorm:"size:32"`
	Tags                  []byte     `gorm:"type:jsonb"`
	Amount                *float64
	Status                string     `gorm:"size:32;index;not null"`
	Parties               []byte     `gorm:"type:jsonb"`
	Signatures            []byte     `gorm:"type:jsonb"`
	SignatureRequestToken string     `gorm:"size:1024"`
	SignatureExpiresAt    *time.Time
	Version               int64     `gorm:"not null;default:1"`
	CreatedAt             time.Time `gorm:"index"`
	UpdatedAt             time.Time
	CompletedAt           *time.Time
}

func (ContractModel) TableName() string { return "contracts" }

type AuditEntryModel struct {
	ID          string    `gorm:"primaryKey;size:64"`
	ContractID  string    `gorm:"size:64;index;not null"`
	Action      string    `gorm:"size:64;not null"`
	PerformedBy string    `gorm:"size:256"`
	PerformedAt time.Time `gorm:"index"`
	Details     []byte    `gorm:"type:jsonb"`
}

func (AuditEntryModel) TableName() string { return "audit_entries" }

type CertificateModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	ContractID      string `gorm:"size:64;uniqueIndex;not null"`
	ContractTitle   string `gorm:"size:512"`
	CertificateHash string `gorm:"size:128;not null"`
	Parties         []byte `gorm:"type:jsonb"`
	IssuedAt        time.Time
}

func (CertificateModel) TableName() string { return "certificates" }

func toContractModel(c domain.Contract) (ContractModel, error) {
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return ContractModel{}, fmt.Errorf("marshal tags: %w", err)
	}
	parties, err := json.Marshal(c.Parties)
	if err != nil {
		return ContractModel{}, fmt.Errorf("marshal parties: %w", err)
	}
	signatures, err := json.Marshal(c.Signatures)
	if err != nil {
		return ContractModel{}, fmt.Errorf("marshal signatures: %w", err)
	}
	return ContractModel{
		ID:                    c.ID,
		Title:                 c.Title,
		Description:           c.Description,
		Content:               c.Content,
		Type:                  c.Type,
		Category:              c.Category,
		Priority:              c.Priority,
		Tags:                  tags,
		Amount:                c.Amount,
		Status:                string(c.Status),
		Parties:               parties,
		Signatures:            signatures,
		SignatureRequestToken: c.SignatureRequestToken,
		SignatureExpiresAt:    c.SignatureExpiresAt,
		Version:               c.Version,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
		CompletedAt:           c.CompletedAt,
	}, nil
}

func fromContractModel(m ContractModel) (domain.Contract, error) {
	c := domain.Contract{
		ID:                    m.ID,
		Title:                 m.Title,
		Description:           m.Description,
		Content:               m.Content,
		Type:                  m.Type,
		Category:              m.Category,
		Priority:              m.Priority,
		Amount:                m.Amount,
		Status:                domain.ContractStatus(m.Status),
		SignatureRequestToken: m.SignatureRequestToken,
		SignatureExpiresAt:    m.SignatureExpiresAt,
		Version:               m.Version,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
		CompletedAt:           m.CompletedAt,
	}
	if len(m.Tags) > 0 {
		if err := json.Unmarshal(m.Tags, &c.Tags); err != nil {
			return domain.Contract{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(m.Parties) > 0 {
		if err := json.Unmarshal(m.Parties, &c.Parties); err != nil {
			return domain.Contract{}, fmt.Errorf("unmarshal parties: %w", err)
		}
	}
	if len(m.Signatures) > 0 {
		if err := json.Unmarshal(m.Signatures, &c.Signatures); err != nil {
			return domain.Contract{}, fmt.Errorf("unmarshal signatures: %w", err)
		}
	}
	return c, nil
}

func toAuditModel(e domain.AuditEntry) (AuditEntryModel, error) {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return AuditEntryModel{}, fmt.Errorf("marshal details: %w", err)
	}
	return AuditEntryModel{
		ID:          e.ID,
		ContractID:  e.ContractID,
		Action:      string(e.Action),
		PerformedBy: e.PerformedBy,
		PerformedAt: e.PerformedAt,
		Details:     details,
	}, nil
}

func fromAuditModel(m AuditEntryModel) (domain.AuditEntry, error) {
	e := domain.AuditEntry{
		ID:          m.ID,
		ContractID:  m.ContractID,
		Action:      domain.AuditAction(m.Action),
		PerformedBy: m.PerformedBy,
		PerformedAt: m.PerformedAt,
	}
	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &e.Details); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	return e, nil
}

func toCertificateModel(c domain.Certificate) (CertificateModel, error) {
	parties, err := json.Marshal(c.Parties)
	if err != nil {
		return CertificateModel{}, fmt.Errorf("marshal parties: %w", err)
	}
	return CertificateModel{
		ID:              c.ID,
		ContractID:      c.ContractID,
		ContractTitle:   c.ContractTitle,
		CertificateHash: c.CertificateHash,
		Parties:         parties,
		IssuedAt:        c.IssuedAt,
	}, nil
}

func fromCertificateModel(m CertificateModel) (domain.Certificate, error) {
	c := domain.Certificate{
		ID:              m.ID,
		ContractID:      m.ContractID,
		ContractTitle:   m.ContractTitle,
		CertificateHash: m.CertificateHash,
		IssuedAt:        m.IssuedAt,
	}
	if len(m.Parties) > 0 {
		if err := json.Unmarshal(m.Parties, &c.Parties); err != nil {
			return domain.Certificate{}, fmt.Errorf("unmarshal parties: %w", err)
		}
	}
	return c, nil
}
