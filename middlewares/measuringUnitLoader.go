package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/retail_backend/models"
	"gorm.io/gorm"
)

type measuringUnitReader struct {
	db *gorm.DB
}

func (r *measuringUnitReader) getMeasuringUnits(ctx context.Context, ids []int) []*dataloader.Result[*models.MeasuringUnit] {
	var results []models.MeasuringUnit
	err := scoped(ctx, r.db).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.MeasuringUnit](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetMeasuringUnit(ctx context.Context, id int) (*models.MeasuringUnit, error) {
	loaders := For(ctx)
	return loaders.measuringUnitLoader.Load(ctx, id)()
}

func GetMeasuringUnits(ctx context.Context, ids []int) ([]*models.MeasuringUnit, []error) {
	loaders := For(ctx)
	return loaders.measuringUnitLoader.LoadMany(ctx, ids)()
}

type loaderUnitLookup struct{}

func (loaderUnitLookup) LookupUnit(ctx context.Context, id int) (*models.MeasuringUnit, error) {
	if id <= 0 {
		return nil, nil
	}
	unit, err := GetMeasuringUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	// placeholder for an id the organization does not own
	if unit == nil || unit.OrganizationId == "" {
		return nil, nil
	}
	return unit, nil
}

// UnitLookup batches unit reads of one request through the measuring unit loader.
func UnitLookup() models.UnitLookup {
	return loaderUnitLookup{}
}
