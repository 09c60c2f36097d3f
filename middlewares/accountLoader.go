package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/crm_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type accountReader struct {
	db *gorm.DB
}

func (r *accountReader) getAccounts(ctx context.Context, ids []int) []*dataloader.Result[*models.Account] {
	var results []models.Account
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Account](len(ids), err)
	}

	return generateLoaderResults(results, ids)
}

func GetAccount(ctx context.Context, id int) (*models.Account, error) {
	loaders := For(ctx)
	return loaders.AccountLoader.Load(ctx, id)()
}

func GetAccounts(ctx context.Context, ids []int) ([]*models.Account, []error) {
	loaders := For(ctx)
	return loaders.AccountLoader.LoadMany(ctx, ids)()
}
