package models

import (
	"context"
	"errors"
	"testing"
)

func TestMarkInvoiceSentFromDraftOnly(t *testing.T) {
	ctx := context.Background()
	invoice := mustCreateInvoice(t, "tester")

	sent, err := MarkInvoiceSent(ctx, "tester", invoice.ID)
	if err != nil {
		t.Fatalf("MarkInvoiceSent: %v", err)
	}
	if sent.CurrentStatus != DocumentStatusSent {
		t.Errorf("status = %s, want Sent", sent.CurrentStatus)
	}
	if sent.DateSent == nil {
		t.Error("DateSent not stamped")
	}

	if _, err := MarkInvoiceSent(ctx, "tester", invoice.ID); err == nil {
		t.Error("expected error re-sending a sent invoice")
	}
}

func TestMarkInvoicePaidFromAnyStateStampsOnce(t *testing.T) {
	ctx := context.Background()

	// paying a Draft invoice directly is allowed
	draft := mustCreateInvoice(t, "tester")
	paid, err := MarkInvoicePaid(ctx, "compta", draft.ID)
	if err != nil {
		t.Fatalf("MarkInvoicePaid draft: %v", err)
	}
	if paid.CurrentStatus != DocumentStatusPaid {
		t.Errorf("status = %s, want Paid", paid.CurrentStatus)
	}
	if paid.DatePaid == nil {
		t.Error("DatePaid not stamped")
	}

	// paying twice is rejected
	if _, err := MarkInvoicePaid(ctx, "compta", draft.ID); err == nil {
		t.Error("expected error paying a paid invoice")
	}

	// a paid invoice can no longer be edited
	if _, err := UpdateDocument(ctx, "tester", draft.ID, guestQuoteInput()); err == nil {
		t.Error("expected error updating a paid invoice")
	}
}

func TestRecordInvoiceReminderCountsIndependentOfStatus(t *testing.T) {
	ctx := context.Background()
	invoice := mustCreateInvoice(t, "tester")
	if _, err := MarkInvoiceSent(ctx, "tester", invoice.ID); err != nil {
		t.Fatalf("MarkInvoiceSent: %v", err)
	}

	first, err := RecordInvoiceReminder(ctx, "tester", invoice.ID)
	if err != nil {
		t.Fatalf("RecordInvoiceReminder: %v", err)
	}
	if first.ReminderCount != 1 {
		t.Errorf("ReminderCount = %d, want 1", first.ReminderCount)
	}
	if first.LastReminderSent == nil {
		t.Fatal("LastReminderSent not stamped")
	}
	if first.CurrentStatus != DocumentStatusSent {
		t.Errorf("status = %s, reminder must not change it", first.CurrentStatus)
	}

	second, err := RecordInvoiceReminder(ctx, "tester", invoice.ID)
	if err != nil {
		t.Fatalf("RecordInvoiceReminder: %v", err)
	}
	if second.ReminderCount != 2 {
		t.Errorf("ReminderCount = %d, want 2", second.ReminderCount)
	}
	if !second.LastReminderSent.After(*first.LastReminderSent) && !second.LastReminderSent.Equal(*first.LastReminderSent) {
		t.Error("LastReminderSent did not advance")
	}
	if !hasHistoryAction(t, invoice.ID, HistoryActionReminder) {
		t.Error("REMINDER history entry missing")
	}
}

func TestRecordDeliveryFailureLeavesStatusUntouched(t *testing.T) {
	ctx := context.Background()
	invoice := mustCreateInvoice(t, "tester")

	if err := RecordDeliveryFailure(ctx, "tester", invoice.ID, errors.New("smtp: connection refused")); err != nil {
		t.Fatalf("RecordDeliveryFailure: %v", err)
	}

	after, err := GetDocument(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if after.CurrentStatus != DocumentStatusDraft {
		t.Errorf("status = %s, want Draft unchanged", after.CurrentStatus)
	}
	if after.DateSent != nil {
		t.Error("DateSent stamped on a failed delivery")
	}
	if !hasHistoryAction(t, invoice.ID, HistoryActionSendFailure) {
		t.Error("SEND_FAILED history entry missing")
	}
}

func TestInvoiceTransitionsRejectQuotes(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")
	if _, err := MarkInvoicePaid(ctx, "tester", quote.ID); err == nil {
		t.Error("expected error paying a quote")
	}
	if _, err := RecordInvoiceReminder(ctx, "tester", quote.ID); err == nil {
		t.Error("expected error reminding about a quote")
	}
}
