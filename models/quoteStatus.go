package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Quote workflow: Draft -> Sent -> Viewed -> Accepted | Rejected |
// ChangeRequested, reopen back to Draft from any non-Converted state,
// Draft -> Converted as the side effect of invoice creation.

func getQuote(ctx context.Context, id int) (*Document, error) {
	doc, err := GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Kind != DocumentKindQuote {
		return nil, errors.New("document is not a quote")
	}
	return doc, nil
}

// MarkQuoteSent records a successful email delivery of a Draft quote.
// The caller (the send workflow) only invokes this after the transport
// reported success; delivery failure never reaches here.
func MarkQuoteSent(ctx context.Context, actorId string, id int) (*Document, error) {
	quote, err := getQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if quote.CurrentStatus != DocumentStatusDraft {
		return nil, fmt.Errorf("cannot send a %s quote", quote.CurrentStatus)
	}

	extra := map[string]interface{}{}
	if quote.DateSent == nil {
		extra["date_sent"] = time.Now()
	}
	if err := changeDocumentStatus(ctx, quote, DocumentStatusSent, extra,
		HistoryActionSendSuccess, "quote "+quote.DocumentNumber+" sent by email", actorId); err != nil {
		return nil, err
	}
	return GetDocument(ctx, id)
}

// AcceptQuote is an explicit caller action from Sent or Viewed.
func AcceptQuote(ctx context.Context, actorId string, id int) (*Document, error) {
	return resolveQuote(ctx, actorId, id, DocumentStatusAccepted, "")
}

// RejectQuote is an explicit caller action from Sent or Viewed; the
// optional reason lands in history.
func RejectQuote(ctx context.Context, actorId string, id int, reason string) (*Document, error) {
	return resolveQuote(ctx, actorId, id, DocumentStatusRejected, reason)
}

// RequestQuoteChange asks for a revision from Sent or Viewed.
func RequestQuoteChange(ctx context.Context, actorId string, id int, reason string) (*Document, error) {
	return resolveQuote(ctx, actorId, id, DocumentStatusChangeRequested, reason)
}

func resolveQuote(ctx context.Context, actorId string, id int, status DocumentStatus, reason string) (*Document, error) {
	quote, err := getQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if quote.CurrentStatus != DocumentStatusSent && quote.CurrentStatus != DocumentStatusViewed {
		return nil, fmt.Errorf("cannot move a %s quote to %s", quote.CurrentStatus, status)
	}

	detail := fmt.Sprintf("quote %s marked %s", quote.DocumentNumber, status)
	if reason != "" {
		detail += ": " + reason
	}
	extra := map[string]interface{}{}
	if status == DocumentStatusAccepted && quote.DateAccepted == nil {
		extra["date_accepted"] = time.Now()
	}
	if status == DocumentStatusRejected && quote.DateRejected == nil {
		extra["date_rejected"] = time.Now()
	}
	if err := changeDocumentStatus(ctx, quote, status, extra, HistoryActionStatus, detail, actorId); err != nil {
		return nil, err
	}
	return GetDocument(ctx, id)
}

// ReopenQuote puts any non-Converted quote back into Draft.
func ReopenQuote(ctx context.Context, actorId string, id int) (*Document, error) {
	quote, err := getQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if quote.CurrentStatus == DocumentStatusConverted {
		return nil, errors.New("cannot reopen a converted quote")
	}
	if err := changeDocumentStatus(ctx, quote, DocumentStatusDraft, nil,
		HistoryActionStatus, "quote "+quote.DocumentNumber+" reopened as draft", actorId); err != nil {
		return nil, err
	}
	return GetDocument(ctx, id)
}
