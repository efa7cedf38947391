package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/retail_backend/models"
	"gorm.io/gorm"
)

type saleLineReader struct {
	db *gorm.DB
}

func (r *saleLineReader) getSaleLines(ctx context.Context, invoiceIds []int) []*dataloader.Result[[]*models.SaleLine] {
	var results []models.SaleLine
	err := scoped(ctx, r.db).
		Where("sales_invoice_id IN ?", invoiceIds).
		Order("sales_invoice_id, line_no").
		Find(&results).Error
	if err != nil {
		return handleError[[]*models.SaleLine](len(invoiceIds), err)
	}
	return generateLoaderArrayResults(results, invoiceIds)
}

func GetSaleLines(ctx context.Context, invoiceId int) ([]*models.SaleLine, error) {
	loaders := For(ctx)
	return loaders.saleLineLoader.Load(ctx, invoiceId)()
}
