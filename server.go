package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Evan-ql/shuadan/chuangzhi"
	"github.com/Evan-ql/shuadan/config"
	"github.com/Evan-ql/shuadan/middlewares"
	"github.com/Evan-ql/shuadan/models"
	"github.com/Evan-ql/shuadan/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// customErrorLogger logs only requests that collected errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func registerRoutes(r *gin.Engine) {
	syncService := chuangzhi.NewSyncService(chuangzhi.NewDBStore(), chuangzhi.NewClient())

	r.POST("/api/auth/login", loginHandler())

	api := r.Group("/api", middlewares.RequireAuth())
	{
		api.GET("/auth/me", meHandler())
		api.POST("/auth/logout", logoutHandler())

		api.POST("/settlements", createSettlementHandler())
		api.GET("/settlements", listSettlementsHandler())
		api.GET("/settlements/statuses", distinctStatusesHandler())
		api.GET("/settlements/stats/settlement", settlementStatsHandler())
		api.GET("/settlements/stats/special", specialStatsHandler())
		api.GET("/settlements/untransferred", untransferredHandler())
		api.GET("/settlements/:id", getSettlementHandler())
		api.PUT("/settlements/:id", updateSettlementHandler())
		api.DELETE("/settlements/:id", deleteSettlementHandler())
		api.PUT("/settlements/:id/special", toggleSpecialHandler())

		api.POST("/transfers", createTransferHandler())
		api.GET("/transfers/settlement/:id", transfersBySettlementHandler())
		api.DELETE("/transfers/:id", deleteTransferHandler())

		adminOnly := middlewares.RequireAdmin(models.UserRoleAdmin)

		api.GET("/backup/export", backupExportHandler())
		api.POST("/backup/import", adminOnly, backupImportHandler())
		api.GET("/backup/export/xlsx", backupExportXlsxHandler())
		api.POST("/backup/import/xlsx", adminOnly, backupImportXlsxHandler())

		api.GET("/chuangzhi/token", chuangzhi.GetTokenHandler())
		api.POST("/chuangzhi/token", chuangzhi.SaveTokenHandler())
		api.POST("/chuangzhi/token/verify", chuangzhi.VerifyTokenHandler(syncService))
		api.POST("/chuangzhi/sync", chuangzhi.SyncHandler(syncService))
		api.POST("/chuangzhi/retry", chuangzhi.RetrySyncHandler(syncService))
		api.GET("/chuangzhi/failures", chuangzhi.ListFailuresHandler())
		api.PUT("/chuangzhi/failures/:id/ignore", chuangzhi.IgnoreFailureHandler())
		api.DELETE("/chuangzhi/failures/:id", adminOnly, chuangzhi.DeleteFailureHandler())
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server before the database is ready; app
	// endpoints return 503 until dependencies come up.
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
	// In production an explicit allowlist is required; elsewhere allow
	// all for developer convenience.
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

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
