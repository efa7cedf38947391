package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/middlewares"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/mmdatafocus/retail_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

const correlationIdHeader = "x-correlation-id"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddress,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return client
}

func correlationIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(correlationIdHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header(correlationIdHeader, cid)
		c.Next()
	}
}

// readinessMiddleware answers 503 until DB and Redis are connected.
func readinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

func corsConfigFromEnv() cors.Config {
	corsConfig := cors.DefaultConfig()
	// In production only CORS_ALLOWED_ORIGINS (comma-separated) may call; elsewhere allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", idempotencyKeyHeader, correlationIdHeader)
	corsConfig.AddExposeHeaders("Content-Length", correlationIdHeader)
	corsConfig.AllowCredentials = true
	return corsConfig
}

// registerRoutes mounts the API. Session and loader middleware must already be installed.
func registerRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api/v1", middlewares.RequireOrganization())
	{
		inventory := api.Group("/inventory")
		inventory.POST("/stock-receipts", stockReceiptHandler("receiveStockHandler", models.ReceiveStock))
		inventory.POST("/stock-receipts/import", importStockReceiptsHandler())
		inventory.POST("/opening-stock", stockReceiptHandler("openingStockHandler", models.RecordOpeningStock))
		inventory.GET("/products/:id", inventoryDetailsHandler())
		inventory.GET("/products/:id/ledger", ledgerEntriesHandler())
		inventory.GET("/products/:id/reconcile", reconcileProductHandler())

		pos := api.Group("/pos")
		pos.POST("/sales", createSaleHandler())
		pos.GET("/sales", listSalesHandler())
		pos.GET("/sales/:id", getSaleHandler())
		pos.GET("/next-invoice-number", nextInvoiceNumberHandler())
		pos.GET("/products", posProductsHandler())
		pos.GET("/customers", posCustomersHandler())

		api.POST("/units/families", createUnitFamilyHandler())
		api.POST("/units", createMeasuringUnitHandler())
		api.GET("/units", listMeasuringUnitsHandler())
		api.POST("/products", createProductHandler())
	}

	r.GET("/api/v1/schemas/:name", schemaHandler())

	// Ops tooling (admin only): replay outbox messages that were marked DEAD/FAILED.
	r.POST("/internal/ops/outbox/replay", middlewares.RequireAdmin(), outboxReplayHandler())
	r.NoRoute(customNotFoundHandler)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(correlationIdMiddleware())
	r.Use(readinessMiddleware())
	r.Use(cors.New(corsConfigFromEnv()))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	registerRoutes(r)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; SKIP_MIGRATIONS lets a separate job run it instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Outbox dispatcher publishes inventory events after commit.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	dispatcher := workflow.NewOutboxDispatcher(db, logger)
	applyOutboxDispatchEnv(dispatcher)
	go dispatcher.Run(dispatcherCtx)

	log.Println("Server started successfully on port " + port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.ClosePubSub()
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware counts requests per client IP in fixed windows.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "ratelimit:" + c.ClientIP()

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := rl.client.Expire(c.Request.Context(), key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
