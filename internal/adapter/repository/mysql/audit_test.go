package mysql

import (
	"context"
	"testing"
	"time"

	"receivables-engine/internal/domain/audit"

	"github.com/shopspring/decimal"
)

func TestAudit_AppendListAndPublish(t *testing.T) {
	db := openTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	e1 := audit.New(audit.ReceivableCreated, 1, issuerA, decimal.NewFromInt(1000), t0).With("tier", "LOW")
	e2 := audit.New(audit.ListingCreated, 1, issuerA, decimal.NewFromInt(950), t0.Add(time.Minute)).With("market", "primary")
	e3 := audit.New(audit.ReceivableCreated, 2, issuerB, decimal.NewFromInt(10), t0.Add(2*time.Minute))
	for _, e := range []*audit.Event{e1, e2, e3} {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	byRec, err := repo.ListByReceivable(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(byRec) != 2 || byRec[0].ID != e1.ID || byRec[1].ID != e2.ID {
		t.Fatalf("ListByReceivable order wrong: %+v", byRec)
	}
	if byRec[0].Attributes["tier"] != "LOW" {
		t.Fatalf("attributes not round-tripped: %+v", byRec[0].Attributes)
	}

	pending, err := repo.ListUnpublished(ctx, 2)
	if err != nil || len(pending) != 2 {
		t.Fatalf("ListUnpublished(limit 2) = %d (%v)", len(pending), err)
	}
	if err := repo.MarkPublished(ctx, []string{pending[0].ID, pending[1].ID}, t0.Add(time.Hour)); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	rest, _ := repo.ListUnpublished(ctx, 10)
	if len(rest) != 1 || rest[0].ID != e3.ID {
		t.Fatalf("remaining unpublished = %+v", rest)
	}
	if err := repo.MarkPublished(ctx, nil, t0); err != nil {
		t.Fatalf("MarkPublished(nil): %v", err)
	}
}
