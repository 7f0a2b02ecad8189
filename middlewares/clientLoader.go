package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmlogistics/freight_backend/models"
	"gorm.io/gorm"
)

type clientReader struct {
	db *gorm.DB
}

func (r *clientReader) getClients(ctx context.Context, ids []int) []*dataloader.Result[*models.Client] {
	var results []models.Client
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Client](len(ids), err)
	}

	return generateLoaderResults(results, ids)
}

func GetClient(ctx context.Context, id int) (*models.Client, error) {
	loaders := For(ctx)
	return loaders.clientLoader.Load(ctx, id)()
}

func GetClients(ctx context.Context, ids []int) ([]*models.Client, []error) {
	loaders := For(ctx)
	return loaders.clientLoader.LoadMany(ctx, ids)()
}
