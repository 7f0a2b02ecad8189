package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmlogistics/freight_backend/config"
)

// Invoice workflow: Draft -> Sent -> Viewed -> Paid, with Paid reachable
// from any state by explicit caller action. Reminders are orthogonal to
// status.

func getInvoice(ctx context.Context, id int) (*Document, error) {
	doc, err := GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Kind != DocumentKindInvoice {
		return nil, errors.New("document is not an invoice")
	}
	return doc, nil
}

// MarkInvoiceSent records a successful email delivery of a Draft invoice.
func MarkInvoiceSent(ctx context.Context, actorId string, id int) (*Document, error) {
	invoice, err := getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus != DocumentStatusDraft {
		return nil, fmt.Errorf("cannot send a %s invoice", invoice.CurrentStatus)
	}

	extra := map[string]interface{}{}
	if invoice.DateSent == nil {
		extra["date_sent"] = time.Now()
	}
	if err := changeDocumentStatus(ctx, invoice, DocumentStatusSent, extra,
		HistoryActionSendSuccess, "invoice "+invoice.DocumentNumber+" sent by email", actorId); err != nil {
		return nil, err
	}
	return GetDocument(ctx, id)
}

// MarkInvoicePaid moves the invoice to Paid. DatePaid stamps exactly
// once; calling again on an already-Paid invoice is rejected rather than
// re-stamped.
func MarkInvoicePaid(ctx context.Context, actorId string, id int) (*Document, error) {
	invoice, err := getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus == DocumentStatusPaid {
		return nil, errors.New("invoice is already paid")
	}

	extra := map[string]interface{}{}
	if invoice.DatePaid == nil {
		extra["date_paid"] = time.Now()
	}
	if err := changeDocumentStatus(ctx, invoice, DocumentStatusPaid, extra,
		HistoryActionStatus, "invoice "+invoice.DocumentNumber+" marked paid", actorId); err != nil {
		return nil, err
	}
	return GetDocument(ctx, id)
}

// RecordInvoiceReminder bumps the reminder counter and stamps the last
// reminder time. It runs on every reminder send, whatever the status.
func RecordInvoiceReminder(ctx context.Context, actorId string, id int) (*Document, error) {
	invoice, err := getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	extra := map[string]interface{}{
		"reminder_count":     invoice.ReminderCount + 1,
		"last_reminder_sent": time.Now(),
	}
	detail := fmt.Sprintf("payment reminder %d sent for invoice %s", invoice.ReminderCount+1, invoice.DocumentNumber)
	if err := changeDocumentStatus(ctx, invoice, invoice.CurrentStatus, extra,
		HistoryActionReminder, detail, actorId); err != nil {
		return nil, err
	}
	return GetDocument(ctx, id)
}

// RecordDeliveryFailure appends the failed-send history entry. Status
// stays untouched; the transport error itself propagates to the caller
// from the send workflow.
func RecordDeliveryFailure(ctx context.Context, actorId string, id int, cause error) error {
	doc, err := GetDocument(ctx, id)
	if err != nil {
		return err
	}
	db := config.GetDB()
	return appendHistory(db.WithContext(ctx), doc.ID, HistoryActionSendFailure,
		fmt.Sprintf("email delivery of %s %s failed: %v", kindLabel(doc.Kind), doc.DocumentNumber, cause), actorId)
}
