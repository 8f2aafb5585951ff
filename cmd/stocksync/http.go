package main

import (
	"net/http"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/controllers"
	"github.com/craftstock/craftstock/cmd/stocksync/postgresql"
	"github.com/craftstock/craftstock/cmd/stocksync/reconciler"
	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRestAPI initializes the REST API and starts listening
func SetupRestAPI(service *reconciler.Service, store *postgresql.Connection, accounts gin.Accounts) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))

	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Healthcheck
	router.GET(
		"/", func(c *gin.Context) {
			c.String(http.StatusOK, "online")
		})

	v1 := router.Group("/api/v1", gin.BasicAuth(accounts))
	{
		// Need to check in each specific handler whether the user is actually
		// allowed to access it, so that a valid user of business "a" cannot
		// access data of business "b"
		sync := v1.Group("/:business/sync")
		{
			sync.POST("/push", controllers.PushHandler(service))
			sync.GET("/pull", controllers.PullHandler(service))
			sync.GET("/conflicts", controllers.ConflictsHandler(service))
			sync.POST("/deduplicate", controllers.DeduplicateHandler(service))
			sync.POST("/cleanup", controllers.CleanupHandler(service))
			sync.GET("/status", controllers.StatusHandler())
		}

		v1.GET("/:business/materials", controllers.ListMaterialsHandler(store))
		v1.GET("/:business/materials/:materialId", controllers.GetMaterialHandler(store))
		v1.GET("/:business/materials/:materialId/events", controllers.GetMaterialEventsHandler(store))
		v1.GET("/:business/alerts", controllers.ListAlertsHandler(store))
	}

	err := router.Run(":80")
	if err != nil {
		zap.S().Fatalf("Failed to start REST API: %s", err)
	}
}
