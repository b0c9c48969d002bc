// Package notify delivers signing links to parties. The log notifier is
// the default delivery channel; a mail or webhook sender can replace it
// behind the same interface.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"signet/internal/domain"
)

type LogNotifier struct {
	Logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) SendSignatureRequest(ctx context.Context, contract domain.Contract, party domain.Party, signingURL string, expiresAt time.Time) error {
	n.Logger.Info().
		Str("contract_id", contract.ID).
		Str("contract_title", contract.Title).
		Str("party_id", party.ID).
		Str("party_email", party.Email).
		Str("signing_url", signingURL).
		Time("expires_at", expiresAt).
		Msg("signature request issued")
	return nil
}
