package middlewares

import (
	"context"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	productLoader       *dataloader.Loader[int, *models.Product]
	measuringUnitLoader *dataloader.Loader[int, *models.MeasuringUnit]
	customerLoader      *dataloader.Loader[int, *models.Customer]
	saleLineLoader      *dataloader.Loader[int, []*models.SaleLine]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	productReader := &productReader{db: conn}
	measuringUnitReader := &measuringUnitReader{db: conn}
	customerReader := &customerReader{db: conn}
	saleLineReader := &saleLineReader{db: conn}

	return &Loaders{
		productLoader:       dataloader.NewBatchedLoader(productReader.getProducts, dataloader.WithWait[int, *models.Product](time.Millisecond)),
		measuringUnitLoader: dataloader.NewBatchedLoader(measuringUnitReader.getMeasuringUnits, dataloader.WithWait[int, *models.MeasuringUnit](time.Millisecond)),
		customerLoader:      dataloader.NewBatchedLoader(customerReader.getCustomers, dataloader.WithWait[int, *models.Customer](time.Millisecond)),
		saleLineLoader:      dataloader.NewBatchedLoader(saleLineReader.getSaleLines, dataloader.WithWait[int, []*models.SaleLine](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// scoped restricts a reader query to the caller's organization.
func scoped(ctx context.Context, db *gorm.DB) *gorm.DB {
	q := db.WithContext(ctx)
	if orgId, ok := utils.GetOrganizationIdFromContext(ctx); ok && orgId != "" {
		q = q.Where("organization_id = ?", orgId)
	}
	return q
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results from db into dataloader results
// (T must be a struct)
func generateLoaderResults[T models.Data](results []T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]T)
	for _, result := range results {
		resultMap[result.GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		data := resultMap[id]
		if reflect.ValueOf(data).IsZero() {
			data = data.GetDefault(id).(T)
		}
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: &data})
	}
	return loaderResults
}

// each id has many related results
func generateLoaderArrayResults[T models.RelatedData](results []T, referenceIds []int) (loaderResults []*dataloader.Result[[]*T]) {
	resultMap := make(map[int][]*T)
	for _, result := range results {
		// new variable every turn, the loop variable is reused
		copy := result
		resultMap[result.GetReferenceId()] = append(resultMap[result.GetReferenceId()], &copy)
	}
	for _, id := range referenceIds {
		loaderResults = append(loaderResults, &dataloader.Result[[]*T]{Data: resultMap[id]})
	}
	return loaderResults
}
