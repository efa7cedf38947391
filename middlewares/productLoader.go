package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/retail_backend/models"
	"gorm.io/gorm"
)

type productReader struct {
	db *gorm.DB
}

func (r *productReader) getProducts(ctx context.Context, ids []int) []*dataloader.Result[*models.Product] {
	var results []models.Product
	err := scoped(ctx, r.db).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Product](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetProduct(ctx context.Context, id int) (*models.Product, error) {
	loaders := For(ctx)
	return loaders.productLoader.Load(ctx, id)()
}
