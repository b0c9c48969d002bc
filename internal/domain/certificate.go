package domain

import "time"

// CertificateParty captures the exact signer set bound by CertificateHash.
type CertificateParty struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	SignedAt time.Time `json:"signed_at"`
}

// Certificate is derived deterministically from a completed contract. At
// most one exists per contract; regeneration returns the existing record.
type Certificate struct {
	ID              string             `json:"id"`
	ContractID      string             `json:"contract_id"`
	ContractTitle   string             `json:"contract_title"`
	CertificateHash string             `json:"certificate_hash"`
	Parties         []CertificateParty `json:"parties"`
	IssuedAt        time.Time          `json:"issued_at"`
}
