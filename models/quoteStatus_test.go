package models

import (
	"context"
	"strings"
	"testing"
)

func TestMarkQuoteSentStampsOnce(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")

	sent, err := MarkQuoteSent(ctx, "tester", quote.ID)
	if err != nil {
		t.Fatalf("MarkQuoteSent: %v", err)
	}
	if sent.CurrentStatus != DocumentStatusSent {
		t.Errorf("status = %s, want Sent", sent.CurrentStatus)
	}
	if sent.DateSent == nil {
		t.Fatal("DateSent not stamped")
	}
	if !hasHistoryAction(t, quote.ID, HistoryActionSendSuccess) {
		t.Error("SEND history entry missing")
	}

	// a second send from Sent is rejected
	if _, err := MarkQuoteSent(ctx, "tester", quote.ID); err == nil {
		t.Error("expected error re-sending a sent quote")
	}

	// reopen and re-send: DateSent keeps its first value
	firstSent := *sent.DateSent
	if _, err := ReopenQuote(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("ReopenQuote: %v", err)
	}
	again, err := MarkQuoteSent(ctx, "tester", quote.ID)
	if err != nil {
		t.Fatalf("MarkQuoteSent after reopen: %v", err)
	}
	if again.DateSent == nil || !again.DateSent.Equal(firstSent) {
		t.Error("DateSent re-stamped on second send")
	}
}

func TestAcceptQuoteFromSentOrViewed(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")

	// Draft cannot be accepted
	if _, err := AcceptQuote(ctx, "client", quote.ID); err == nil {
		t.Error("expected error accepting a draft quote")
	}

	if _, err := MarkQuoteSent(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("MarkQuoteSent: %v", err)
	}
	accepted, err := AcceptQuote(ctx, "client", quote.ID)
	if err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}
	if accepted.CurrentStatus != DocumentStatusAccepted {
		t.Errorf("status = %s, want Accepted", accepted.CurrentStatus)
	}
	if accepted.DateAccepted == nil {
		t.Error("DateAccepted not stamped")
	}

	// accepting twice fails (Accepted is not Sent/Viewed)
	if _, err := AcceptQuote(ctx, "client", quote.ID); err == nil {
		t.Error("expected error accepting an accepted quote")
	}
}

func TestRejectQuoteRecordsReason(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")
	if _, err := MarkQuoteSent(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("MarkQuoteSent: %v", err)
	}
	rejected, err := RejectQuote(ctx, "client", quote.ID, "tarif trop élevé")
	if err != nil {
		t.Fatalf("RejectQuote: %v", err)
	}
	if rejected.CurrentStatus != DocumentStatusRejected {
		t.Errorf("status = %s, want Rejected", rejected.CurrentStatus)
	}

	entries, err := GetDocumentHistories(ctx, quote.ID)
	if err != nil {
		t.Fatalf("GetDocumentHistories: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Action == HistoryActionStatus && e.ActorId == "client" {
			found = true
			if want := "tarif trop élevé"; !strings.Contains(e.Detail, want) {
				t.Errorf("detail %q missing reason %q", e.Detail, want)
			}
		}
	}
	if !found {
		t.Error("STATUS history entry with actor missing")
	}

	if rejected.DateRejected == nil {
		t.Fatal("DateRejected not stamped on rejection")
	}
	stamp := *rejected.DateRejected

	// the stamp survives a reopen / re-reject cycle
	if _, err := ReopenQuote(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("ReopenQuote: %v", err)
	}
	if _, err := MarkQuoteSent(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("MarkQuoteSent: %v", err)
	}
	again, err := RejectQuote(ctx, "client", quote.ID, "")
	if err != nil {
		t.Fatalf("RejectQuote: %v", err)
	}
	if again.DateRejected == nil || !again.DateRejected.Equal(stamp) {
		t.Error("DateRejected re-stamped on second rejection")
	}
}

func TestRequestQuoteChangeFromViewed(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")
	if _, err := MarkQuoteSent(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("MarkQuoteSent: %v", err)
	}
	// recipient opens the quote first
	if _, err := GetDocumentByToken(ctx, quote.AccessToken); err != nil {
		t.Fatalf("GetDocumentByToken: %v", err)
	}

	changed, err := RequestQuoteChange(ctx, "client", quote.ID, "volume revu à la baisse")
	if err != nil {
		t.Fatalf("RequestQuoteChange: %v", err)
	}
	if changed.CurrentStatus != DocumentStatusChangeRequested {
		t.Errorf("status = %s, want ChangeRequested", changed.CurrentStatus)
	}
}

func TestReopenQuoteReturnsToDraft(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")
	if _, err := MarkQuoteSent(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("MarkQuoteSent: %v", err)
	}
	if _, err := RejectQuote(ctx, "client", quote.ID, ""); err != nil {
		t.Fatalf("RejectQuote: %v", err)
	}

	reopened, err := ReopenQuote(ctx, "tester", quote.ID)
	if err != nil {
		t.Fatalf("ReopenQuote: %v", err)
	}
	if reopened.CurrentStatus != DocumentStatusDraft {
		t.Errorf("status = %s, want Draft", reopened.CurrentStatus)
	}
}

func TestQuoteTransitionsRejectInvoices(t *testing.T) {
	ctx := context.Background()
	invoice := mustCreateInvoice(t, "tester")
	if _, err := AcceptQuote(ctx, "tester", invoice.ID); err == nil {
		t.Error("expected error applying a quote transition to an invoice")
	}
}
