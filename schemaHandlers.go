package main

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/shopspring/decimal"
)

// request bodies published under /schemas/:name
var requestSchemas = map[string]any{
	"sale":          models.NewSale{},
	"stock-receipt": models.NewStockReceipt{},
	"product":       models.NewProduct{},
	"unit":          models.NewMeasuringUnit{},
	"unit-family":   models.NewUnitFamily{},
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func schemaReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		// decimals are accepted as JSON numbers or numeric strings
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{
					OneOf: []*jsonschema.Schema{
						{Type: "number"},
						{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`},
					},
				}
			}
			return nil
		},
	}
}

func schemaHandler() gin.HandlerFunc {
	reflector := schemaReflector()
	return func(c *gin.Context) {
		v, ok := requestSchemas[c.Param("name")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown schema"})
			return
		}
		c.JSON(http.StatusOK, reflector.Reflect(v))
	}
}
