package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmlogistics/freight_backend/config"
	"github.com/mmlogistics/freight_backend/models"
	"github.com/mmlogistics/freight_backend/utils"
)

type DocumentMailer struct {
	Sender   EmailSender
	Renderer DocumentRenderer
}

func NewDocumentMailer() (*DocumentMailer, error) {
	renderer, err := NewTemplateRenderer()
	if err != nil {
		return nil, err
	}
	return &DocumentMailer{
		Sender:   DefaultSender(),
		Renderer: renderer,
	}, nil
}

func recipientEmail(ctx context.Context, doc *models.Document) (string, error) {
	if doc.ClientId > 0 {
		client, err := models.GetClient(ctx, doc.ClientId)
		if err != nil {
			return "", err
		}
		if client.Email == "" {
			return "", errors.New("client has no email address")
		}
		return client.Email, nil
	}
	if doc.GuestEmail == "" {
		return "", errors.New("document has no recipient email address")
	}
	return doc.GuestEmail, nil
}

// SendDocument emails a Draft document to its counterparty. Delivery
// failure leaves the status untouched, records the failure in the
// history and surfaces the transport error to the caller.
func (m *DocumentMailer) SendDocument(ctx context.Context, actorId string, id int) (*models.Document, error) {
	logger := config.GetLogger()

	doc, err := models.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.CurrentStatus != models.DocumentStatusDraft {
		return nil, fmt.Errorf("cannot send a %s document", doc.CurrentStatus)
	}

	to, err := recipientEmail(ctx, doc)
	if err != nil {
		return nil, err
	}

	body, err := m.Renderer.Render(doc, PublicDocumentURL(doc))
	if err != nil {
		return nil, err
	}

	msg := EmailMessage{
		To:       to,
		Subject:  documentSubject(doc),
		HtmlBody: body,
	}
	if err := m.Sender.Send(msg); err != nil {
		config.LogError(logger, "emailWorkflow.go", "SendDocument", "Sender.Send", doc.DocumentNumber, err)
		if histErr := models.RecordDeliveryFailure(ctx, actorId, doc.ID, err); histErr != nil {
			config.LogError(logger, "emailWorkflow.go", "SendDocument", "RecordDeliveryFailure", doc.ID, histErr)
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrorDeliveryFailure, err)
	}

	if doc.Kind == models.DocumentKindInvoice {
		return models.MarkInvoiceSent(ctx, actorId, doc.ID)
	}
	return models.MarkQuoteSent(ctx, actorId, doc.ID)
}

// SendReminder re-emails an invoice and bumps its reminder counter.
// Works in any status the caller deems worth reminding about; the
// status itself never changes.
func (m *DocumentMailer) SendReminder(ctx context.Context, actorId string, id int) (*models.Document, error) {
	logger := config.GetLogger()

	doc, err := models.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Kind != models.DocumentKindInvoice {
		return nil, errors.New("reminders only apply to invoices")
	}
	// No status gate: the reminder counter moves on every send, whatever
	// state the invoice is in.

	to, err := recipientEmail(ctx, doc)
	if err != nil {
		return nil, err
	}

	body, err := m.Renderer.Render(doc, PublicDocumentURL(doc))
	if err != nil {
		return nil, err
	}

	msg := EmailMessage{
		To:       to,
		Subject:  "Reminder: " + documentSubject(doc),
		HtmlBody: body,
	}
	if err := m.Sender.Send(msg); err != nil {
		config.LogError(logger, "emailWorkflow.go", "SendReminder", "Sender.Send", doc.DocumentNumber, err)
		if histErr := models.RecordDeliveryFailure(ctx, actorId, doc.ID, err); histErr != nil {
			config.LogError(logger, "emailWorkflow.go", "SendReminder", "RecordDeliveryFailure", doc.ID, histErr)
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrorDeliveryFailure, err)
	}

	return models.RecordInvoiceReminder(ctx, actorId, doc.ID)
}
