package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/crm_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type interactionByAccountReader struct {
	db *gorm.DB
}

func (r *interactionByAccountReader) getInteractionsByAccount(ctx context.Context, accountIds []int) []*dataloader.Result[[]*models.Interaction] {
	var results []models.Interaction
	err := r.db.WithContext(ctx).
		Where("account_id IN ?", accountIds).
		Order("contacted_at DESC, id DESC").
		Find(&results).Error
	if err != nil {
		return handleError[[]*models.Interaction](len(accountIds), err)
	}

	return generateLoaderArrayResults(results, accountIds)
}

func GetAccountInteractions(ctx context.Context, accountId int) ([]*models.Interaction, error) {
	loaders := For(ctx)
	return loaders.interactionByAccountLoader.Load(ctx, accountId)()
}
