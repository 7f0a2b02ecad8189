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
	"github.com/mmlogistics/freight_backend/config"
	"github.com/mmlogistics/freight_backend/middlewares"
	"github.com/mmlogistics/freight_backend/models"
	"github.com/mmlogistics/freight_backend/utils"
	"github.com/mmlogistics/freight_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("freight-documents")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// actorId identifies the human behind a mutation. There is no account
// system; the header value is recorded verbatim in the history trail.
func actorId(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-Actor-Id"))
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorDeliveryFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	}
}

func createQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "documents.create_quote")
		defer span.End()
		quote, err := models.CreateQuote(ctx, actorId(c), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, quote)
	}
}

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "documents.create_invoice")
		defer span.End()
		invoice, err := models.CreateInvoice(ctx, actorId(c), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func getDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		doc, err := models.GetDocument(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return
		}

		response := gin.H{"document": doc}
		if doc.ClientId > 0 {
			client, err := middlewares.GetClient(ctx, doc.ClientId)
			if err == nil {
				response["client"] = client
			}
		}
		linkedId, err := models.LinkedDocumentId(ctx, doc)
		if err == nil && linkedId > 0 {
			response["linked_document_id"] = linkedId
		}
		histories, err := middlewares.GetDocumentHistories(ctx, doc.ID)
		if err == nil {
			response["histories"] = histories
		}
		c.JSON(http.StatusOK, response)
	}
}

func updateDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "documents.update")
		defer span.End()
		doc, err := workflow.UpdateDocumentAndSync(ctx, actorId(c), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func deleteDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		doc, err := models.DeleteDocument(c.Request.Context(), actorId(c), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func listDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var kind *models.DocumentKind
		if v := c.Query("kind"); v != "" {
			k := models.DocumentKind(v)
			if k != models.DocumentKindQuote && k != models.DocumentKindInvoice {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind filter"})
				return
			}
			kind = &k
		}
		var status *models.DocumentStatus
		if v := c.Query("status"); v != "" {
			s := models.DocumentStatus(v)
			status = &s
		}
		var number *string
		if v := c.Query("number"); v != "" {
			number = &v
		}
		var clientID *int
		if v := c.Query("client_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id filter"})
				return
			}
			clientID = &n
		}
		var limit *int
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = &n
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}

		ctx := c.Request.Context()
		connection, err := models.PaginateDocuments(ctx, limit, after, kind, number, clientID, status)
		if err != nil {
			abortWithError(c, err)
			return
		}

		response := gin.H{
			"edges":    connection.Edges,
			"pageInfo": connection.PageInfo,
		}
		// One batched lookup resolves every referenced client on the page.
		ids := make([]int, 0, len(connection.Edges))
		seen := map[int]bool{}
		for _, edge := range connection.Edges {
			if edge.Node.ClientId > 0 && !seen[edge.Node.ClientId] {
				seen[edge.Node.ClientId] = true
				ids = append(ids, edge.Node.ClientId)
			}
		}
		if len(ids) > 0 {
			clients, _ := middlewares.GetClients(ctx, ids)
			byId := make(map[int]*models.Client, len(clients))
			for _, client := range clients {
				if client != nil && client.ID > 0 {
					byId[client.ID] = client
				}
			}
			response["clients"] = byId
		}
		c.JSON(http.StatusOK, response)
	}
}

func sendDocumentHandler(mailer *workflow.DocumentMailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "documents.send")
		defer span.End()
		doc, err := mailer.SendDocument(ctx, actorId(c), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

type reasonInput struct {
	Reason string `json:"reason"`
}

func quoteTransitionHandler(apply func(ctx context.Context, actorId string, id int, reason string) (*models.Document, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input reasonInput
		// body is optional on transitions without a reason
		_ = c.ShouldBindJSON(&input)

		doc, err := apply(c.Request.Context(), actorId(c), id, input.Reason)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

type convertInput struct {
	DueDate *time.Time `json:"due_date"`
}

func convertQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input convertInput
		_ = c.ShouldBindJSON(&input)

		ctx, span := tracer.Start(c.Request.Context(), "documents.convert_quote")
		defer span.End()
		invoice, err := models.ConvertQuoteToInvoice(ctx, actorId(c), id, input.DueDate)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func payInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		invoice, err := models.MarkInvoicePaid(c.Request.Context(), actorId(c), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func remindInvoiceHandler(mailer *workflow.DocumentMailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		invoice, err := mailer.SendReminder(c.Request.Context(), actorId(c), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func documentHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		connection, err := models.PaginateDocumentHistory(c.Request.Context(), limit, after, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, connection)
	}
}

// publicDocumentHandler serves the tokenized recipient view. A Sent
// document flips to Viewed on first open.
func publicDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
			return
		}
		doc, err := models.GetDocumentByToken(c.Request.Context(), token)
		if err != nil {
			// Do not leak whether the token exists.
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func createClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		client, err := models.CreateClient(c.Request.Context(), input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, client)
	}
}

func updateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		client, err := models.UpdateClient(c.Request.Context(), id, input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func deleteClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		client, err := models.DeleteClient(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func getClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		client, err := models.GetClient(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func listClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var limit *int
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = &n
			}
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		connection, err := models.PaginateClients(c.Request.Context(), limit, after, name)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, connection)
	}
}

func upsertSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDocumentSettings
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		settings, err := models.UpsertDocumentSettings(c.Request.Context(), input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, settings)
	}
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

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until the DB is ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		ctx = utils.SetClientIPInContext(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
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
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Actor-Id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
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

	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	mailer, err := workflow.NewDocumentMailer()
	if err != nil {
		log.Fatal(err)
	}

	r.POST("/quotes", createQuoteHandler())
	r.POST("/invoices", createInvoiceHandler())
	r.GET("/documents", listDocumentsHandler())
	r.GET("/documents/:id", getDocumentHandler())
	r.PUT("/documents/:id", updateDocumentHandler())
	r.DELETE("/documents/:id", deleteDocumentHandler())
	r.POST("/documents/:id/send", sendDocumentHandler(mailer))
	r.GET("/documents/:id/histories", documentHistoriesHandler())

	r.POST("/quotes/:id/accept", quoteTransitionHandler(func(ctx context.Context, actorId string, id int, _ string) (*models.Document, error) {
		return models.AcceptQuote(ctx, actorId, id)
	}))
	r.POST("/quotes/:id/reject", quoteTransitionHandler(models.RejectQuote))
	r.POST("/quotes/:id/request-change", quoteTransitionHandler(models.RequestQuoteChange))
	r.POST("/quotes/:id/reopen", quoteTransitionHandler(func(ctx context.Context, actorId string, id int, _ string) (*models.Document, error) {
		return models.ReopenQuote(ctx, actorId, id)
	}))
	r.POST("/quotes/:id/convert", convertQuoteHandler())

	r.POST("/invoices/:id/pay", payInvoiceHandler())
	r.POST("/invoices/:id/remind", remindInvoiceHandler(mailer))

	r.POST("/clients", createClientHandler())
	r.GET("/clients", listClientsHandler())
	r.GET("/clients/:id", getClientHandler())
	r.PUT("/clients/:id", updateClientHandler())
	r.DELETE("/clients/:id", deleteClientHandler())

	r.PUT("/settings", upsertSettingsHandler())

	// Recipient-facing, no actor header.
	r.GET("/public/documents/:token", publicDocumentHandler())

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
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") || config.StrictDocumentNumberLock() {
		config.ConnectRedisWithRetry()
	}

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that locks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
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

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
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
