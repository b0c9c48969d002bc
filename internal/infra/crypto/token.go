package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"time"

	"signet/internal/domain"
)

// TokenCodec seals signature-token claims with AES-256-GCM and encodes the
// result with URL-safe base64. Tokens are stateless: validity is purely
// cryptographic plus the embedded expiry. Single-use consumption is tracked
// separately by the token store, not here.
type TokenCodec struct {
	key []byte
	now func() time.Time
}

func NewTokenCodec(secret string, now func() time.Time) *TokenCodec {
	if now == nil {
		now = time.Now
	}
	key := sha256.Sum256([]byte(secret))
	return &TokenCodec{key: key[:], now: now}
}

// Issue seals {contractID, partyID, now+ttl, nonce} into an opaque token.
func (c *TokenCodec) Issue(contractID, partyID string, ttl time.Duration) (string, domain.TokenClaims, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", domain.TokenClaims{}, err
	}
	claims := domain.TokenClaims{
		ContractID: contractID,
		PartyID:    partyID,
		ExpiresAt:  c.now().UTC().Add(ttl),
		Nonce:      hex.EncodeToString(nonce),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", domain.TokenClaims{}, err
	}
	gcm, err := c.aead()
	if err != nil {
		return "", domain.TokenClaims{}, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", domain.TokenClaims{}, err
	}
	sealed := gcm.Seal(iv, iv, payload, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), claims, nil
}

// Verify decodes and decrypts a token. The three outcomes are distinct:
// valid, expired (decrypted fine but past its expiry), and invalid (any
// decode, decrypt, or parse failure, including a wrong secret).
func (c *TokenCodec) Verify(token string) domain.TokenVerification {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return domain.TokenVerification{}
	}
	gcm, err := c.aead()
	if err != nil {
		return domain.TokenVerification{}
	}
	if len(raw) < gcm.NonceSize() {
		return domain.TokenVerification{}
	}
	payload, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return domain.TokenVerification{}
	}
	var claims domain.TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return domain.TokenVerification{}
	}
	if claims.ContractID == "" || claims.PartyID == "" || claims.ExpiresAt.IsZero() {
		return domain.TokenVerification{}
	}
	if c.now().UTC().After(claims.ExpiresAt) {
		return domain.TokenVerification{Expired: true}
	}
	return domain.TokenVerification{
		Valid:      true,
		ContractID: claims.ContractID,
		PartyID:    claims.PartyID,
	}
}

func (c *TokenCodec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
