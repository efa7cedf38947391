package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

type outboxReplayRequest struct {
	OrganizationId string `json:"organization_id" binding:"required"`
	ReferenceType  string `json:"reference_type" binding:"required,oneof=SalesInvoice Product"`
	ReferenceId    int    `json:"reference_id" binding:"required,gt=0"`
}

// outboxReplayHandler re-queues a document's unsent or dead events. Admin only.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), req.OrganizationId)
		messages, err := models.ReplayOutbox(ctx, req.ReferenceType, req.ReferenceId)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no replayable outbox messages"})
				return
			}
			respondError(c, "outboxReplayHandler", req, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"replayed": len(messages), "items": messages})
	}
}
