package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"signet/internal/domain"
)

// SignedAtFormat fixes the serialization of the signing timestamp. The
// verification hash binds the exact byte form, so every producer and
// verifier must use the same format.
const SignedAtFormat = time.RFC3339

// Service computes the verification hashes and derived identifiers of the
// signing protocol. The secret is process-wide and read-only after startup;
// rotating it invalidates all outstanding tokens and breaks verification of
// historical signatures.
type Service struct {
	secret []byte
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// VerificationHash is HMAC-SHA256 over the five bound fields, hex encoded.
// Changing a single byte of any field changes the result.
func (s *Service) VerificationHash(contractID, partyID string, signedAt time.Time, ipAddress, userAgent string) string {
	payload := strings.Join([]string{
		contractID,
		partyID,
		signedAt.UTC().Format(SignedAtFormat),
		ipAddress,
		userAgent,
	}, "|")
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the HMAC from the stored fields and compares
// byte for byte. Malformed input never panics; it simply fails to match.
func (s *Service) VerifySignature(contractID string, sig domain.Signature) bool {
	if sig.VerificationHash == "" {
		return false
	}
	expected := s.VerificationHash(contractID, sig.PartyID, sig.SignedAt, sig.IPAddress, sig.UserAgent)
	return hmac.Equal([]byte(expected), []byte(sig.VerificationHash))
}

// CertificateID derives the human-referenceable signature certificate id:
// CERT- plus the first 16 hex characters of SHA-256 over the signing tuple.
func CertificateID(partyID string, signedAt time.Time, verificationHash string) string {
	payload := partyID + "|" + signedAt.UTC().Format(SignedAtFormat) + "|" + verificationHash
	sum := sha256.Sum256([]byte(payload))
	return "CERT-" + strings.ToUpper(hex.EncodeToString(sum[:])[:16])
}

// ContractIntegrityHash binds the contract body independent of signatures;
// signatures only bind signer context, so both checks are needed to detect
// tampering.
func ContractIntegrityHash(contract domain.Contract) (string, error) {
	type partyRef struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	parties := make([]partyRef, 0, len(contract.Parties))
	for _, p := range contract.Parties {
		parties = append(parties, partyRef{ID: p.ID, Name: p.Name, Email: p.Email})
	}
	payload := struct {
		ContractID string     `json:"contract_id"`
		Title      string     `json:"title"`
		Content    string     `json:"content"`
		Parties    []partyRef `json:"parties"`
		CreatedAt  string     `json:"created_at"`
	}{
		ContractID: contract.ID,
		Title:      contract.Title,
		Content:    contract.Content,
		Parties:    parties,
		CreatedAt:  contract.CreatedAt.UTC().Format(SignedAtFormat),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// CertificateHash binds a completion certificate to the exact signature set
// present at generation time. Parties are sorted by id so the hash does not
// depend on signing order.
func CertificateHash(certificateID, contractID string, issuedAt time.Time, parties []domain.CertificateParty) (string, error) {
	sorted := make([]domain.CertificateParty, len(parties))
	copy(sorted, parties)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	type partyRef struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		SignedAt string `json:"signed_at"`
	}
	refs := make([]partyRef, 0, len(sorted))
	for _, p := range sorted {
		refs = append(refs, partyRef{
			ID:       p.ID,
			Email:    p.Email,
			SignedAt: p.SignedAt.UTC().Format(SignedAtFormat),
		})
	}
	payload := struct {
		CertificateID string     `json:"certificate_id"`
		ContractID    string     `json:"contract_id"`
		Date          string     `json:"date"`
		Parties       []partyRef `json:"parties"`
	}{
		CertificateID: certificateID,
		ContractID:    contractID,
		Date:          issuedAt.UTC().Format("2006-01-02"),
		Parties:       refs,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// ImageHash hashes optional signature image data for the audit trail. Any
// data-URL prefix is stripped first so only the content is bound.
func ImageHash(imageData string) string {
	if imageData == "" {
		return ""
	}
	if idx := strings.Index(imageData, ","); idx >= 0 && strings.HasPrefix(imageData, "data:") {
		imageData = imageData[idx+1:]
	}
	sum := sha256.Sum256([]byte(imageData))
	return hex.EncodeToString(sum[:])
}
