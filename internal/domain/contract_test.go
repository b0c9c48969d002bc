package domain

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[ContractStatus][]ContractStatus{
		StatusDraft:            {StatusPendingReview, StatusPendingSignature, StatusCancelled},
		StatusPendingReview:    {StatusPendingSignature, StatusDraft, StatusCancelled},
		StatusPendingSignature: {StatusPartiallySigned, StatusCompleted, StatusCancelled, StatusExpired},
		StatusPartiallySigned:  {StatusCompleted, StatusCancelled},
		StatusCompleted:        {},
		StatusCancelled:        {StatusDraft},
		StatusExpired:          {StatusDraft, StatusCancelled},
	}
	statuses := []ContractStatus{
		StatusDraft, StatusPendingReview, StatusPendingSignature,
		StatusPartiallySigned, StatusCompleted, StatusCancelled, StatusExpired,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	if got := StatusCompleted.AllowedTransitions(); len(got) != 0 {
		t.Fatalf("completed allows %v, want none", got)
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusDraft.Valid() {
		t.Fatal("draft must be valid")
	}
	if ContractStatus("bogus").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}

func TestAllSignedCountsRequiredPartiesOnly(t *testing.T) {
	c := Contract{
		Parties: []Party{
			{ID: "p1", SignatureRequired: true},
			{ID: "p2", SignatureRequired: false},
			{ID: "p3", SignatureRequired: true},
		},
	}
	if c.AllSigned() {
		t.Fatal("unsigned contract reported all signed")
	}
	c.Signatures = []Signature{{PartyID: "p1"}}
	if c.AllSigned() {
		t.Fatal("one of two required signatures reported all signed")
	}
	if got := c.SignedCount(); got != 1 {
		t.Fatalf("signed count = %d, want 1", got)
	}
	c.Signatures = append(c.Signatures, Signature{PartyID: "p3"})
	if !c.AllSigned() {
		t.Fatal("all required parties signed, expected all signed")
	}
}

func TestFilterMatches(t *testing.T) {
	created := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := Contract{
		ID:        "c1",
		Title:     "Master Service Agreement",
		Status:    StatusDraft,
		Type:      "msa",
		Category:  "legal",
		Priority:  "high",
		Tags:      []string{"vendor", "renewal"},
		CreatedAt: created,
		Parties: []Party{
			{ID: "p1", Name: "Alice Cooper", Email: "alice@example.com", Company: "Acme"},
		},
	}

	cases := []struct {
		name   string
		filter ContractFilter
		want   bool
	}{
		{"empty filter", ContractFilter{}, true},
		{"status match", ContractFilter{Status: StatusDraft}, true},
		{"status mismatch", ContractFilter{Status: StatusCompleted}, false},
		{"facets", ContractFilter{Type: "msa", Category: "legal", Priority: "high"}, true},
		{"query over title", ContractFilter{Query: "service"}, true},
		{"query over party email", ContractFilter{Query: "alice@"}, true},
		{"query over company", ContractFilter{Query: "acme"}, true},
		{"query miss", ContractFilter{Query: "nonexistent"}, false},
		{"all tags present", ContractFilter{Tags: []string{"vendor", "renewal"}}, true},
		{"missing tag", ContractFilter{Tags: []string{"vendor", "nda"}}, false},
		{"date range hit", ContractFilter{From: timePtr(created.Add(-time.Hour)), To: timePtr(created.Add(time.Hour))}, true},
		{"before range", ContractFilter{From: timePtr(created.Add(time.Hour))}, false},
		{"after range", ContractFilter{To: timePtr(created.Add(-time.Hour))}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(c); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
