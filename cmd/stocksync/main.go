package main

import (
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/craftstock/craftstock/cmd/stocksync/alerts"
	"github.com/craftstock/craftstock/cmd/stocksync/helpers"
	"github.com/craftstock/craftstock/cmd/stocksync/postgresql"
	"github.com/craftstock/craftstock/cmd/stocksync/reconciler"
	"github.com/craftstock/craftstock/internal"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"
)

func main() {
	InitLogging()
	InitPrometheus()

	store := postgresql.GetOrInit()
	InitCache()
	InitHealthCheck(store)

	notifier := alerts.NewNotifier(store)
	service := reconciler.NewService(store, notifier)

	adminUser, _ := env.GetAsString("ADMIN_USER", false, "admin") //nolint:errcheck
	helpers.AdminUser = adminUser

	StartScheduler(service, notifier, store)

	go SetupRestAPI(service, store, loadAccounts(adminUser))

	awaitShutdown(store)
	// We should never get to this await, but better to have it then to always close the program
	select {}
}

// loadAccounts builds the basic auth account set. One account per business
// from CUSTOMER_NAME_n / CUSTOMER_PASSWORD_n pairs, plus the admin account.
func loadAccounts(adminUser string) gin.Accounts {
	accounts := gin.Accounts{}

	zap.S().Debugf("Loading accounts from environment..")

	for i := 1; i <= 100; i++ {
		tempUser := os.Getenv("CUSTOMER_NAME_" + strconv.Itoa(i))
		tempPassword := os.Getenv("CUSTOMER_PASSWORD_" + strconv.Itoa(i))
		if tempUser != "" && tempPassword != "" {
			zap.S().Infof("Added account for " + tempUser)
			accounts[tempUser] = tempPassword
		}
	}

	adminPassword, err := env.GetAsString("ADMIN_PASSWORD", true, "")
	if err != nil {
		zap.S().Fatal(err)
	}
	accounts[adminUser] = adminPassword

	return accounts
}

func awaitShutdown(store *postgresql.Connection) {
	// Allow graceful shutdown. Kubernetes sends SIGTERM 30 seconds before
	// shutting down the pod.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM)

	sig := <-sigs
	zap.S().Infof("Received SIG %v", sig)

	store.Shutdown()
	os.Exit(0)
}

func InitLogging() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	_ = logger.New(logLevel)
}

func InitPrometheus() {
	// Prometheus
	metricsPath := "/metrics"
	metricsPort := ":2112"
	zap.S().Debugf("Setting up metrics %s %v", metricsPath, metricsPort)

	http.Handle(metricsPath, promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(metricsPort, nil)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()
}

func InitCache() {
	redisURI, _ := env.GetAsString("REDIS_URI", false, "")           //nolint:errcheck
	redisURI2, _ := env.GetAsString("REDIS_URI2", false, "")         //nolint:errcheck
	redisURI3, _ := env.GetAsString("REDIS_URI3", false, "")         //nolint:errcheck
	redisPassword, _ := env.GetAsString("REDIS_PASSWORD", false, "") //nolint:errcheck
	redisDB, _ := env.GetAsInt("REDIS_DB", false, 0)                 //nolint:errcheck
	dryRun, _ := env.GetAsString("DRY_RUN", false, "false")          //nolint:errcheck

	internal.InitCache(redisURI, redisURI2, redisURI3, redisPassword, redisDB, dryRun)
}

func InitHealthCheck(store *postgresql.Connection) {
	zap.S().Debugf("Setting up healthcheck")

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000000))

	health.AddReadinessCheck("database", store.GetHealthCheck())
	health.AddLivenessCheck("database", store.GetHealthCheck())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe("0.0.0.0:8086", health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()
}
