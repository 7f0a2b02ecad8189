package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmlogistics/freight_backend/models"
	"gorm.io/gorm"
)

type documentHistoryReader struct {
	db *gorm.DB
}

func (r *documentHistoryReader) getHistories(ctx context.Context, documentIds []int) []*dataloader.Result[[]*models.DocumentHistory] {
	var results []models.DocumentHistory
	err := r.db.WithContext(ctx).
		Where("document_id IN ?", documentIds).
		Order("created_at DESC, id DESC").
		Find(&results).Error
	if err != nil {
		return handleError[[]*models.DocumentHistory](len(documentIds), err)
	}

	return generateLoaderArrayResults(results, documentIds)
}

func GetDocumentHistories(ctx context.Context, documentId int) ([]*models.DocumentHistory, error) {
	loaders := For(ctx)
	return loaders.documentHistoryLoader.Load(ctx, documentId)()
}
