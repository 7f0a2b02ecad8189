package models

import (
	"context"
	"fmt"

	"github.com/mmlogistics/freight_backend/config"
	"github.com/mmlogistics/freight_backend/utils"
	"gorm.io/gorm"
)

// writeDocument performs the single-transaction header+lines write. It is
// a package variable so tests can interpose store failures around it.
var writeDocument = writeDocumentTx

// writeDocumentTx upserts the header, deletes every existing line of the
// document and inserts the new set, all in one transaction. No reader
// ever observes a header paired with a stale line set.
func writeDocumentTx(ctx context.Context, db *gorm.DB, doc *Document, lines []DocumentLine) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	// IMPORTANT: always rollback on early-return or panic to avoid leaking DB locks
	// (leaked transactions are a common cause of MySQL 1205 lock wait timeouts).
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if doc.ID == 0 {
		if err := tx.Omit("Lines").Create(doc).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Omit("Lines").Save(doc).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("document_id = ?", doc.ID).Delete(&DocumentLine{}).Error; err != nil {
		return err
	}
	for i := range lines {
		lines[i].ID = 0
		lines[i].DocumentId = doc.ID
	}
	if len(lines) > 0 {
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
	}

	return tx.Commit().Error
}

// SaveDocument commits a document and its full line set as one unit and
// returns a fresh reload from the store, never locally-mutated state.
//
// The store can report a write conflict on an operation that actually
// committed (a "phantom insert"). On a conflict the row is probed by its
// access token (ours by construction): if it is absent the conflict was
// real and the original error is re-raised; if it is present but the
// header or lines came up empty/default, one corrective transaction
// re-applies the intended header values and line set. Recovery is bounded
// to that single attempt -- a corrective failure surfaces as-is.
func SaveDocument(ctx context.Context, actorId string, doc *Document, lines []DocumentLine) (*Document, error) {
	db := config.GetDB()

	if err := writeDocument(ctx, db, doc, lines); err != nil {
		if !utils.IsConflictError(err) {
			return nil, err
		}
		recovered, recErr := recoverPhantomInsert(ctx, db, actorId, doc, lines, err)
		if recErr != nil {
			return nil, recErr
		}
		doc = recovered
	}

	if doc.ID == 0 {
		// Phantom create path where gorm never reported the generated id.
		var stored Document
		if err := db.WithContext(ctx).Where("access_token = ?", doc.AccessToken).First(&stored).Error; err != nil {
			return nil, err
		}
		doc.ID = stored.ID
	}

	return GetDocument(ctx, doc.ID)
}

// recoverPhantomInsert distinguishes a genuine conflict from a phantom
// insert and heals the latter. cause is the original store error.
func recoverPhantomInsert(ctx context.Context, db *gorm.DB, actorId string, doc *Document, lines []DocumentLine, cause error) (*Document, error) {

	var stored Document
	probe := db.WithContext(ctx).Preload("Lines").Where("access_token = ?", doc.AccessToken)
	if err := probe.First(&stored).Error; err != nil {
		// The row truly does not exist: the conflict was real, re-raise it.
		return nil, cause
	}

	if documentCommittedIntact(&stored, doc, lines) {
		return &stored, nil
	}

	// The insert half-landed: re-apply the intended header and full line
	// set in one corrective transaction. One attempt only.
	intended := *doc
	intended.ID = stored.ID
	if err := writeDocumentTx(ctx, db, &intended, lines); err != nil {
		return nil, fmt.Errorf("phantom insert recovery failed: %w", err)
	}

	if err := appendHistory(db.WithContext(ctx), intended.ID, HistoryActionSaveRecovered,
		fmt.Sprintf("save of %s reported a conflict but had committed; header and %d lines re-applied", intended.DocumentNumber, len(lines)), actorId); err != nil {
		return nil, err
	}

	return &intended, nil
}

// documentCommittedIntact reports whether the stored row already carries
// the intended header values and the full line set.
func documentCommittedIntact(stored *Document, intended *Document, lines []DocumentLine) bool {
	if stored.DocumentNumber != intended.DocumentNumber {
		return false
	}
	if stored.CurrentStatus == "" {
		return false
	}
	if !stored.TotalTTC.Equal(intended.TotalTTC) || !stored.TotalHT.Equal(intended.TotalHT) {
		return false
	}
	if len(stored.Lines) != len(lines) {
		return false
	}
	return true
}
