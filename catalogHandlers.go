package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/models"
)

func createUnitFamilyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUnitFamily
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		family, err := models.CreateUnitFamily(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createUnitFamilyHandler", input, err)
			return
		}
		c.JSON(http.StatusCreated, family)
	}
}

func createMeasuringUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMeasuringUnit
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		unit, err := models.CreateMeasuringUnit(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createMeasuringUnitHandler", input, err)
			return
		}
		c.JSON(http.StatusCreated, unit)
	}
}

func listMeasuringUnitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		units, err := models.ListMeasuringUnits(c.Request.Context())
		if err != nil {
			respondError(c, "listMeasuringUnitsHandler", nil, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": units})
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createProductHandler", input, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}
