package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/middlewares"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/push"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"bitbucket.org/vmgroup/dealer_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

// RateLimiter throttles by client IP using a Redis counter per window.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// PubSubMessage is the Pub/Sub push-delivery wrapper.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

func stockPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		// Redis lock is a best-effort optimization. Reliability must not
		// depend on Redis: ProcessMessage also serializes per branch via
		// MySQL advisory locks.
		redisLock := config.GetRedisLock()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "stockPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "stockPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m config.StockMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "stockPubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if m.BranchCode == "" || m.ReferenceType == "" {
			config.LogError(logger, "server.go", "stockPubSubHandler", "Invalid pubsub message (missing required fields)", m, fmt.Errorf("branch_code/reference_type required"))
			c.Status(http.StatusNoContent)
			return
		}

		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}

		// Best-effort redis lock to avoid long in-request blocking on the
		// advisory lock when the same branch is already being processed.
		var lock *redislock.Lock
		if redisLock == nil {
			logger.WithFields(logrus.Fields{
				"field":          "stockPubSubHandler",
				"branch_code":    m.BranchCode,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.Message.ID,
			}).Warn("redis lock not ready; proceeding without redis lock")
		} else {
			lock, err = redisLock.Obtain(c.Request.Context(), fmt.Sprintf("lock:%s", m.BranchCode), 30*time.Second, nil)
			if err == redislock.ErrNotObtained {
				lock = nil
			} else if err != nil {
				logger.WithFields(logrus.Fields{
					"field":       "stockPubSubHandler",
					"branch_code": m.BranchCode,
					"message_id":  msg.Message.ID,
				}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":       "stockPubSubHandler",
					"branch_code": m.BranchCode,
					"message_id":  msg.Message.ID,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		ctx := utils.SetBranchCodeInContext(c.Request.Context(), m.BranchCode)
		ctx = utils.SetUserIdInContext(ctx, 0)
		ctx = utils.SetUserNameInContext(ctx, "System")
		ctx = utils.SetCorrelationIdInContext(ctx, correlationID)
		if err := ProcessMessage(ctx, logger, m); err != nil {
			if errors.Is(err, utils.ErrDropMessage) {
				c.Status(http.StatusNoContent)
				return
			}
			logger.WithFields(logrus.Fields{
				"field":          "stockPubSubHandler",
				"branch_code":    m.BranchCode,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("pubsub processing failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func authorizeAdminOnly(ctx context.Context) error {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		if isAdmin, ok := utils.GetIsAdminFromContext(ctx); ok && isAdmin {
			return nil
		}
		return errors.New("unauthorized")
	}

	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return err
	}
	if !exists {
		db := config.GetDB()
		if db == nil {
			return errors.New("db is nil")
		}
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return errors.New("unauthorized")
		}
	}
	if user.GroupName != models.GroupAdmin {
		return errors.New("unauthorized")
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// loginHandler authenticates the console users that are not backed by the
// identity provider (service accounts seeded by cmd/seed-admin). It issues an
// opaque session token registered in Redis plus a JWT for clients that prefer
// bearer auth.
func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bindErrorResponse(err))
			return
		}

		db := config.GetDB()
		var user models.User
		if err := db.WithContext(c.Request.Context()).
			Where("username = ? AND is_active = 1", req.Username).
			Take(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if user.Password == "" || utils.ComparePassword(user.Password, req.Password) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		sessionToken := uuid.NewString()
		if err := config.SetRedisValue("Token:"+sessionToken, user.Username, 24*time.Hour); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		// Warm the user cache the session middleware reads.
		_ = config.SetRedisObject("User:"+user.Username, user, 24*time.Hour)

		jwtToken, err := utils.JwtGenerate(user.ID, user.GroupName)
		if err != nil {
			// Session token alone is enough to use the API.
			jwtToken = ""
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      sessionToken,
			"jwt":        jwtToken,
			"username":   user.Username,
			"group_name": user.GroupName,
		})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if !ok || token == "" {
			c.Status(http.StatusNoContent)
			return
		}
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type recheckRequest struct {
	DataType string `json:"dataType"`
	BatchNo  string `json:"batchNo"`
}

func recheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req recheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.BatchNo == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batchNo is required"})
			return
		}

		db := config.GetDB()
		var patched int
		err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var txErr error
			patched, txErr = workflow.RecheckBatch(tx, logger, models.RecheckRequest{
				DataType: req.DataType,
				BatchNo:  req.BatchNo,
			})
			return txErr
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"batchNo": req.BatchNo,
			"patched": patched,
		})
	}
}

type fetchNotificationsRequest struct {
	UserId     int    `json:"user_id"`
	ProvinceId string `json:"province_id"`
	Limit      int    `json:"limit"`
}

// resolveNotificationTarget decides whose feed a fetch serves. Callers read
// their own feed; reading another user's requires admin. The branch filter
// only applies to the caller's own feed since another user's branch is not in
// this session.
func resolveNotificationTarget(ctx context.Context, req fetchNotificationsRequest) (userId int, province, branchCode string, err error) {
	sessionUserId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || sessionUserId <= 0 {
		return 0, "", "", errors.New("unauthorized")
	}

	userId = sessionUserId
	if req.UserId > 0 && req.UserId != sessionUserId {
		if err := authorizeAdminOnly(ctx); err != nil {
			return 0, "", "", err
		}
		userId = req.UserId
	}

	province, _ = utils.GetProvinceFromContext(ctx)
	if req.ProvinceId != "" {
		province = req.ProvinceId
	}
	if userId == sessionUserId {
		branchCode, _ = utils.GetBranchCodeFromContext(ctx)
	}
	return userId, province, branchCode, nil
}

func fetchNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fetchNotificationsRequest
		_ = c.ShouldBindJSON(&req)

		userId, province, branchCode, err := resolveNotificationTarget(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		views, err := models.FetchNotifications(c.Request.Context(), userId, province, branchCode, req.Limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": views})
	}
}

func markAllReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok || userId <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := models.MarkAllRead(c.Request.Context(), userId); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type sendNotificationRequest struct {
	Title      string `json:"title" binding:"required"`
	Body       string `json:"body"`
	GroupName  string `json:"groupName"`
	Department string `json:"department"`
	BranchCode string `json:"branchCode"`
	Province   string `json:"province"`
	TargetUser *int   `json:"targetUser"`
}

func sendNotificationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req sendNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bindErrorResponse(err))
			return
		}

		username, _ := utils.GetUsernameFromContext(c.Request.Context())
		if username == "" {
			// JWT-only sessions carry a display name but no username.
			username, _ = utils.GetUserNameFromContext(c.Request.Context())
		}
		notification := models.Notification{
			Title:      req.Title,
			Body:       req.Body,
			GroupName:  req.GroupName,
			Department: req.Department,
			BranchCode: req.BranchCode,
			Province:   req.Province,
			TargetUser: req.TargetUser,
			SentBy:     username,
		}
		db := config.GetDB()
		if err := db.WithContext(c.Request.Context()).Create(&notification).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		dispatcher, err := push.Default(c.Request.Context(), logger)
		if err != nil {
			// Feed entry is stored; push delivery degraded.
			c.JSON(http.StatusOK, gin.H{"id": notification.ID, "pushed": false})
			return
		}
		result, err := dispatcher.Dispatch(c.Request.Context(), push.Audience{
			GroupName:  req.GroupName,
			Department: req.Department,
			BranchCode: req.BranchCode,
			Province:   req.Province,
			UserId:     req.TargetUser,
		}, req.Title, req.Body, nil)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"id": notification.ID, "pushed": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":      notification.ID,
			"pushed":  true,
			"targets": result.Targets,
			"success": result.Success,
			"failure": result.Failure,
		})
	}
}

type registerTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

func registerTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok || userId <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req registerTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bindErrorResponse(err))
			return
		}

		db := config.GetDB()
		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, userId).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// Tokens migrate between users when a device changes hands, so the
		// upsert claims the token for the current user.
		record := models.MessageToken{
			Token:      req.Token,
			UserId:     user.ID,
			Username:   user.Username,
			GroupName:  user.GroupName,
			Department: user.Department,
			BranchCode: user.BranchCode,
			Province:   user.Province,
			Role:       user.Role,
			Platform:   req.Platform,
		}
		err := db.WithContext(c.Request.Context()).
			Where("token = ?", req.Token).
			Assign(record).
			FirstOrCreate(&models.MessageToken{}).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type outboxReplayRequest struct {
	RecordIds []int `json:"record_ids"`
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if len(req.RecordIds) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "record_ids are required"})
			return
		}

		replayed, err := workflow.ReplayDeadEvents(c.Request.Context(), config.GetDB(), req.RecordIds)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"replayed": replayed})
	}
}

func backupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		logger := config.GetLogger()
		if err := BackupDatabase(c.Request.Context(), config.GetDB(), logger); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type userCreatedRequest struct {
	Uid         string `json:"uid" binding:"required"`
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	BranchCode  string `json:"branchCode"`
	Province    string `json:"province"`
}

// userCreatedHandler is the identity-provider lifecycle hook. The initial
// group is guessed from the display name; an admin reassigns later.
func userCreatedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req userCreatedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bindErrorResponse(err))
			return
		}
		if req.Email != "" && !utils.IsValidEmail(req.Email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		if req.Phone != "" {
			if err := utils.ValidatePhoneNumber(req.Phone, utils.CountryCode); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
				return
			}
		}

		user := models.User{
			Uid:         req.Uid,
			Username:    req.Username,
			DisplayName: req.DisplayName,
			Email:       req.Email,
			Phone:       req.Phone,
			GroupName:   models.DefaultGroupForDisplayName(req.DisplayName),
			BranchCode:  req.BranchCode,
			Province:    req.Province,
			IsActive:    true,
		}
		db := config.GetDB()
		err := db.WithContext(c.Request.Context()).
			Where("uid = ?", req.Uid).
			FirstOrCreate(&user).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "group_name": user.GroupName})
	}
}

type userDeletedRequest struct {
	Uid string `json:"uid" binding:"required"`
}

func userDeletedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req userDeletedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, bindErrorResponse(err))
			return
		}
		if err := models.PurgeUser(c.Request.Context(), config.GetDB(), req.Uid); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// bindErrorResponse maps binding failures to a per-field error map when the
// failure came from struct validation.
func bindErrorResponse(err error) gin.H {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)}
	}
	return gin.H{"error": "invalid request"}
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

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
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
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require explicit allowlist via CORS_ALLOWED_ORIGINS.
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
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
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
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/pubsub", stockPubSubHandler())
	r.POST("/internal/recheck", recheckHandler())
	r.POST("/rpc/login", loginHandler())
	r.POST("/rpc/logout", logoutHandler())
	r.POST("/rpc/notifications", fetchNotificationsHandler())
	r.POST("/rpc/notifications/mark-all-read", markAllReadHandler())
	r.POST("/rpc/notifications/send", sendNotificationHandler())
	r.POST("/rpc/notifications/register-token", registerTokenHandler())
	// Ops tooling (admin only).
	r.POST("/internal/ops/outbox/replay", outboxReplayHandler())
	r.POST("/internal/ops/backup", backupHandler())
	// Identity-provider lifecycle hooks.
	r.POST("/internal/auth/user-created", userCreatedHandler())
	r.POST("/internal/auth/user-deleted", userDeletedHandler())
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
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
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Outbox dispatcher publishes AFTER commit.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)

	// Daily database export.
	go RunDailyBackup(dispatcherCtx, db, logger)

	// Pull subscription for deployments without a push endpoint.
	if strings.EqualFold(strings.TrimSpace(os.Getenv("PUBSUB_PULL_ENABLED")), "true") {
		if err := RunStockWorkflow(); err != nil {
			config.LogError(logger, "server.go", "main", "RunStockWorkflow", nil, err)
		}
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while draining.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that attached errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

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

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
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
