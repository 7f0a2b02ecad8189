package workflow

import (
	"context"
	"fmt"

	"github.com/mmlogistics/freight_backend/config"
	"github.com/mmlogistics/freight_backend/models"
)

// SyncLinkedDocument propagates the commercial content of a changed
// document to its linked counterpart: counterparty, message, payment
// terms, discount, totals and the full line set. The counterpart keeps
// its own identity fields untouched: number, status, lifecycle stamps,
// access token and footer note.
//
// Sync is best effort. Any failure is logged and swallowed so the
// primary operation never fails because its counterpart could not
// follow.
func SyncLinkedDocument(ctx context.Context, actorId string, sourceId int) {
	logger := config.GetLogger()

	if config.DocumentSyncDisabled() {
		return
	}

	source, err := models.GetDocument(ctx, sourceId)
	if err != nil {
		config.LogWarn(logger, "syncWorkflow.go", "SyncLinkedDocument", "GetDocument source", sourceId, err)
		return
	}

	targetId, err := models.LinkedDocumentId(ctx, source)
	if err != nil {
		config.LogWarn(logger, "syncWorkflow.go", "SyncLinkedDocument", "LinkedDocumentId", sourceId, err)
		return
	}
	if targetId == 0 {
		return
	}

	target, err := models.GetDocument(ctx, targetId)
	if err != nil {
		config.LogWarn(logger, "syncWorkflow.go", "SyncLinkedDocument", "GetDocument target", targetId, err)
		return
	}

	target.ClientId = source.ClientId
	target.GuestName = source.GuestName
	target.GuestEmail = source.GuestEmail
	target.GuestPhone = source.GuestPhone
	target.Message = source.Message
	target.PaymentTerms = source.PaymentTerms
	target.Discount = source.Discount
	target.DiscountType = source.DiscountType
	target.TotalHT = source.TotalHT
	target.TotalVAT = source.TotalVAT
	target.TotalTTC = source.TotalTTC

	lines := make([]models.DocumentLine, 0, len(source.Lines))
	for _, l := range source.Lines {
		lines = append(lines, models.DocumentLine{
			DocumentId:  target.ID,
			LineType:    l.LineType,
			ProductRef:  l.ProductRef,
			Description: l.Description,
			Quantity:    l.Quantity,
			Unit:        l.Unit,
			UnitRate:    l.UnitRate,
			VatRate:     l.VatRate,
			LineTotal:   l.LineTotal,
			Position:    l.Position,
		})
	}

	saved, err := models.SaveDocument(ctx, actorId, target, lines)
	if err != nil {
		config.LogWarn(logger, "syncWorkflow.go", "SyncLinkedDocument", "SaveDocument target", targetId, err)
		return
	}

	detail := fmt.Sprintf("synchronized from %s", source.DocumentNumber)
	if err := models.AppendDocumentHistory(ctx, saved.ID, models.HistoryActionSync, detail, actorId); err != nil {
		config.LogWarn(logger, "syncWorkflow.go", "SyncLinkedDocument", "AppendDocumentHistory", saved.ID, err)
	}
}

// UpdateDocumentAndSync is the write path the server exposes: the edit
// itself is authoritative, the propagation to a linked counterpart rides
// behind it.
func UpdateDocumentAndSync(ctx context.Context, actorId string, id int, input *models.NewDocument) (*models.Document, error) {
	doc, err := models.UpdateDocument(ctx, actorId, id, input)
	if err != nil {
		return nil, err
	}
	SyncLinkedDocument(ctx, actorId, doc.ID)
	return doc, nil
}
