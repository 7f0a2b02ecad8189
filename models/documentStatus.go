package models

import (
	"context"
	"time"

	"github.com/mmlogistics/freight_backend/config"
)

// changeDocumentStatus applies a status change plus optional extra column
// updates and the matching history entry in one transaction.
func changeDocumentStatus(ctx context.Context, doc *Document, status DocumentStatus, extra map[string]interface{}, action string, detail string, actorId string) error {

	updates := map[string]interface{}{"current_status": status}
	for k, v := range extra {
		updates[k] = v
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.Model(&Document{}).Where("id = ?", doc.ID).Updates(updates).Error; err != nil {
		return err
	}
	if err := appendHistory(tx, doc.ID, action, detail, actorId); err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	doc.CurrentStatus = status
	return nil
}

// markDocumentViewed moves a Sent document to Viewed on its first public
// read. DateViewed stamps exactly once; callers guard on CurrentStatus so
// repeat views are no-ops.
func markDocumentViewed(ctx context.Context, doc *Document) error {
	extra := map[string]interface{}{}
	if doc.DateViewed == nil {
		now := time.Now()
		extra["date_viewed"] = now
		doc.DateViewed = &now
	}
	return changeDocumentStatus(ctx, doc, DocumentStatusViewed, extra,
		HistoryActionView, kindLabel(doc.Kind)+" "+doc.DocumentNumber+" viewed via public link", "")
}
