package domain

import "time"

type ContractStatus string

const (
	StatusDraft            ContractStatus = "draft"
	StatusPendingReview    ContractStatus = "pending_review"
	StatusPendingSignature ContractStatus = "pending_signature"
	StatusPartiallySigned  ContractStatus = "partially_signed"
	StatusCompleted        ContractStatus = "completed"
	StatusCancelled        ContractStatus = "cancelled"
	StatusExpired          ContractStatus = "expired"
)

// statusTransitions is the single source of truth for workflow legality.
// completed is terminal: it has no outgoing transitions.
var statusTransitions = map[ContractStatus][]ContractStatus{
	StatusDraft:            {StatusPendingReview, StatusPendingSignature, StatusCancelled},
	StatusPendingReview:    {StatusPendingSignature, StatusDraft, StatusCancelled},
	StatusPendingSignature: {StatusPartiallySigned, StatusCompleted, StatusCancelled, StatusExpired},
	StatusPartiallySigned:  {StatusCompleted, StatusCancelled},
	StatusCompleted:        {},
	StatusCancelled:        {StatusDraft},
	StatusExpired:          {StatusDraft, StatusCancelled},
}

func (s ContractStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s ContractStatus) CanTransitionTo(target ContractStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s ContractStatus) AllowedTransitions() []ContractStatus {
	allowed := statusTransitions[s]
	out := make([]ContractStatus, len(allowed))
	copy(out, allowed)
	return out
}

const (
	// SignatureRequestTTL bounds the lifetime of a signing-request token.
	SignatureRequestTTL = 48 * time.Hour
	// MagicLinkTTL bounds the shorter magic-link token variant.
	MagicLinkTTL = 24 * time.Hour
)

type Party struct {
	ID                string `json:"id"`
	Role              string `json:"role"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Company           string `json:"company,omitempty"`
	SignatureRequired bool   `json:"signature_required"`
}

type Signature struct {
	PartyID          string    `json:"party_id"`
	SignedAt         time.Time `json:"signed_at"`
	IPAddress        string    `json:"ip_address"`
	UserAgent        string    `json:"user_agent"`
	VerificationHash string    `json:"verification_hash"`
	CertificateID    string    `json:"certificate_id"`
	// ImageHash is the content hash of an optional signature image. It is
	// kept for the audit trail only and is not bound by VerificationHash.
	ImageHash string `json:"image_hash,omitempty"`
}

type Contract struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	Type        string         `json:"type,omitempty"`
	Category    string         `json:"category,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Amount      *float64       `json:"amount,omitempty"`
	Status      ContractStatus `json:"status"`
	Parties     []Party        `json:"parties"`
	Signatures  []Signature    `json:"signatures,omitempty"`

	// Transient signing-request fields, present only while a signature
	// request is outstanding.
	SignatureRequestToken string     `json:"signature_request_token,omitempty"`
	SignatureExpiresAt    *time.Time `json:"signature_expires_at,omitempty"`

	// Version implements optimistic concurrency: updates are conditional
	// on the expected version and fail with ErrConflict on a stale read.
	Version int64 `json:"version"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (c *Contract) FindParty(partyID string) *Party {
	for i := range c.Parties {
		if c.Parties[i].ID == partyID {
			return &c.Parties[i]
		}
	}
	return nil
}

func (c *Contract) SignatureFor(partyID string) *Signature {
	for i := range c.Signatures {
		if c.Signatures[i].PartyID == partyID {
			return &c.Signatures[i]
		}
	}
	return nil
}

// AllSigned reports whether every party that requires a signature has one
// recorded. A contract with no signature-required parties counts as signed.
func (c *Contract) AllSigned() bool {
	for _, party := range c.Parties {
		if !party.SignatureRequired {
			continue
		}
		if c.SignatureFor(party.ID) == nil {
			return false
		}
	}
	return true
}

func (c *Contract) SignedCount() int {
	count := 0
	for _, party := range c.Parties {
		if party.SignatureRequired && c.SignatureFor(party.ID) != nil {
			count++
		}
	}
	return count
}

// ContractFilter is the backend-independent query predicate: free text over
// title/description/id/party name+email, exact-match facets, and an
// inclusive creation date range.
type ContractFilter struct {
	Query    string
	Status   ContractStatus
	Type     string
	Category string
	Priority string
	Tags     []string
	From     *time.Time
	To       *time.Time
}

type PageRequest struct {
	Page   int
	Limit  int
	Sort   string
	Filter ContractFilter
}

type ContractPage struct {
	Items   []Contract `json:"items"`
	Total   int64      `json:"total"`
	Page    int        `json:"page"`
	Limit   int        `json:"limit"`
	HasNext bool       `json:"has_next"`
	HasPrev bool       `json:"has_prev"`
}
