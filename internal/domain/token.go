package domain

import "time"

// TokenClaims is the payload sealed inside a signature token. The token is
// its own identity: it is never persisted as a first-class entity.
type TokenClaims struct {
	ContractID string    `json:"contract_id"`
	PartyID    string    `json:"party_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	Nonce      string    `json:"nonce"`
}

// TokenVerification distinguishes the three outcomes callers must be able
// to report separately: valid, expired, and undecryptable/tampered.
type TokenVerification struct {
	Valid      bool
	Expired    bool
	ContractID string
	PartyID    string
}
