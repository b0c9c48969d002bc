package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"signet/internal/domain"
)

func testClock() func() time.Time {
	t := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func newTestLifecycle(repo ContractRepository, audit *memAudit) *Lifecycle {
	return NewLifecycle(repo, NewAuditEmitter(audit, testClock()), testClock(), zerolog.Nop())
}

func twoPartyInput() ContractInput {
	return ContractInput{
		Title: "Service Agreement",
		Parties: []PartyInput{
			{Name: "Alice", Email: "alice@example.com", SignatureRequired: true},
			{Name: "Bob", Email: "bob@example.com", SignatureRequired: true},
		},
	}
}

func TestCreateContractDefaults(t *testing.T) {
	repo := newMemContracts(testClock())
	audit := &memAudit{}
	lc := newTestLifecycle(repo, audit)

	created, err := lc.Create(context.Background(), twoPartyInput(), "tester")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated contract id")
	}
	if created.Status != domain.StatusDraft {
		t.Fatalf("status = %s, want draft", created.Status)
	}
	if created.Version != 1 {
		t.Fatalf("version = %d, want 1", created.Version)
	}
	for _, p := range created.Parties {
		if p.ID == "" {
			t.Fatal("expected generated party id")
		}
	}
	entries, _ := audit.ListByContract(context.Background(), created.ID)
	if len(entries) != 1 || entries[0].Action != domain.AuditContractCreated {
		t.Fatalf("audit entries = %+v, want one contract_created", entries)
	}
	if entries[0].PerformedBy != "tester" {
		t.Fatalf("performed_by = %s, want tester", entries[0].PerformedBy)
	}
}

func TestCreateContractValidation(t *testing.T) {
	lc := newTestLifecycle(newMemContracts(testClock()), &memAudit{})
	ctx := context.Background()

	cases := []struct {
		name  string
		input ContractInput
	}{
		{"missing title", ContractInput{Parties: []PartyInput{{Name: "A", Email: "a@example.com"}}}},
		{"no parties", ContractInput{Title: "T"}},
		{"bad email", ContractInput{Title: "T", Parties: []PartyInput{{Name: "A", Email: "not-an-email"}}}},
		{"missing party name", ContractInput{Title: "T", Parties: []PartyInput{{Email: "a@example.com"}}}},
		{"negative amount", func() ContractInput {
			in := twoPartyInput()
			amount := -5.0
			in.Amount = &amount
			return in
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := lc.Create(ctx, tc.input, "t"); !domain.IsValidationError(err) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestUpdatePartiesLockedAfterSigningBegins(t *testing.T) {
	repo := newMemContracts(testClock())
	lc := newTestLifecycle(repo, &memAudit{})
	ctx := context.Background()

	created, err := lc.Create(ctx, twoPartyInput(), "t")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := lc.ChangeStatus(ctx, created.ID, domain.StatusPendingSignature, "t"); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}

	_, err = lc.Update(ctx, created.ID, ContractUpdateInput{
		Parties: []PartyInput{{Name: "Mallory", Email: "m@example.com"}},
	}, "t")
	if !errors.Is(err, domain.ErrPartiesLocked) {
		t.Fatalf("err = %v, want ErrPartiesLocked", err)
	}

	// Non-party fields stay editable.
	title := "Amended Agreement"
	updated, err := lc.Update(ctx, created.ID, ContractUpdateInput{Title: &title}, "t")
	if err != nil {
		t.Fatalf("Update title: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("title = %s, want %s", updated.Title, title)
	}
	if updated.Version != created.Version+2 {
		t.Fatalf("version = %d, want %d", updated.Version, created.Version+2)
	}
}

func TestChangeStatusTable(t *testing.T) {
	statuses := []domain.ContractStatus{
		domain.StatusDraft, domain.StatusPendingReview, domain.StatusPendingSignature,
		domain.StatusPartiallySigned, domain.StatusCompleted, domain.StatusCancelled,
		domain.StatusExpired,
	}
	ctx := context.Background()
	for _, from := range statuses {
		for _, to := range statuses {
			repo := newMemContracts(testClock())
			lc := newTestLifecycle(repo, &memAudit{})
			seed := domain.Contract{ID: "c1", Title: "T", Status: from, Version: 1}
			if from == domain.StatusCompleted {
				now := testClock()()
				seed.CompletedAt = &now
			}
			if _, err := repo.Create(ctx, seed); err != nil {
				t.Fatalf("seed: %v", err)
			}

			_, err := lc.ChangeStatus(ctx, "c1", to, "t")
			if from.CanTransitionTo(to) {
				if err != nil {
					t.Fatalf("%s -> %s: unexpected error %v", from, to, err)
				}
			} else if !domain.IsInvalidTransition(err) {
				t.Fatalf("%s -> %s: err = %v, want invalid transition", from, to, err)
			}
		}
	}
}

func TestChangeStatusToCompletedStampsCompletedAt(t *testing.T) {
	repo := newMemContracts(testClock())
	lc := newTestLifecycle(repo, &memAudit{})
	ctx := context.Background()
	if _, err := repo.Create(ctx, domain.Contract{ID: "c1", Title: "T", Status: domain.StatusPartiallySigned, Version: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	updated, err := lc.ChangeStatus(ctx, "c1", domain.StatusCompleted, "t")
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(testClock()()) {
		t.Fatalf("completed_at = %v, want %v", updated.CompletedAt, testClock()())
	}
}

func TestDeleteCompletedContractRefused(t *testing.T) {
	repo := newMemContracts(testClock())
	audit := &memAudit{}
	lc := newTestLifecycle(repo, audit)
	ctx := context.Background()
	now := testClock()()
	seed := domain.Contract{ID: "c1", Title: "T", Status: domain.StatusCompleted, Version: 1, CompletedAt: &now}
	if _, err := repo.Create(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := lc.Delete(ctx, "c1", "t"); !errors.Is(err, domain.ErrCompletedImmutable) {
		t.Fatalf("Delete err = %v, want ErrCompletedImmutable", err)
	}
	if _, err := lc.DeleteMany(ctx, []string{"c1"}, "t"); !errors.Is(err, domain.ErrCompletedImmutable) {
		t.Fatalf("DeleteMany err = %v, want ErrCompletedImmutable", err)
	}
	if ok, _ := repo.Exists(ctx, "c1"); !ok {
		t.Fatal("completed contract must survive delete attempts")
	}
}

func TestChangeStatusRetriesOnConflict(t *testing.T) {
	repo := newMemContracts(testClock())
	repo.conflicts = 1
	lc := newTestLifecycle(repo, &memAudit{})
	ctx := context.Background()
	if _, err := repo.Create(ctx, domain.Contract{ID: "c1", Title: "T", Status: domain.StatusDraft, Version: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := lc.ChangeStatus(ctx, "c1", domain.StatusPendingReview, "t"); err != nil {
		t.Fatalf("ChangeStatus after conflict: %v", err)
	}
}
