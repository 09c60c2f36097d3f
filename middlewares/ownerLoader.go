package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/crm_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ownerReader struct {
	db *gorm.DB
}

func (r *ownerReader) getOwners(ctx context.Context, ids []int) []*dataloader.Result[*models.Owner] {
	var results []models.Owner
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Owner](len(ids), err)
	}

	return generateLoaderResults(results, ids)
}

func GetOwner(ctx context.Context, id int) (*models.Owner, error) {
	loaders := For(ctx)
	return loaders.OwnerLoader.Load(ctx, id)()
}

func GetOwners(ctx context.Context, ids []int) ([]*models.Owner, []error) {
	loaders := For(ctx)
	return loaders.OwnerLoader.LoadMany(ctx, ids)()
}
