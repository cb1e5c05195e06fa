package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"casa_pronosticos/config"
	"casa_pronosticos/internal/auth"
	"casa_pronosticos/internal/cache"
	"casa_pronosticos/internal/ledger"
)

// InitRoutes wires storage, cache, clock and service from the config and
// registers every endpoint on the given Gin engine. With MYSQL_DSN set the
// ledger persists to MySQL, otherwise in memory; with REDIS_ADDRESS set the
// read cache lives in redis, otherwise in process.
func InitRoutes(e *gin.Engine, cfg *config.Config) error {
	logger, _ := zap.NewProduction()

	var store ledger.Store
	if cfg.MySQLDSN != "" {
		db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
		if err != nil {
			return err
		}
		store, err = ledger.NewGormStore(db)
		if err != nil {
			return err
		}
	} else {
		store = ledger.NewLocalStore()
	}

	var readCache cache.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		readCache = cache.NewRedisCache(rdb, "pronosticos:")
	} else {
		readCache = cache.NewMemoryCache()
	}

	clock := ledger.NewBusinessClock(cfg.TimezoneName, cfg.TimezoneOffset)
	svc := ledger.NewService(store, readCache, clock, cfg.Machines, cfg.CacheTTL, logger)

	InitRoutesWith(e, svc, logger)
	return nil
}

// InitRoutesWith registers the endpoints against an already-built service.
// Tests use it with a local store and a frozen clock.
func InitRoutesWith(e *gin.Engine, svc *ledger.Service, logger *zap.Logger) {
	h := NewSalesHandler(svc, logger)

	e.GET("/sales", RequirePermission(auth.SalesRead), h.handleListDay)
	e.GET("/sales/totals", RequirePermission(auth.SalesRead), h.handleDailyTotals)
	e.GET("/sales/export", RequirePermission(auth.ReportsRead), h.handleExport)
	e.POST("/sales", RequirePermission(auth.SalesWrite), h.handleRecordReading)
	e.PUT("/sales/:id", RequirePermission(auth.SalesWrite), h.handleEditReading)
	e.DELETE("/sales/:id", RequirePermission(auth.SalesWrite), h.handleDeleteReading)
	e.POST("/sales/import", RequirePermission(auth.SalesWrite), h.handleImport)
	e.GET("/cache/stats", RequirePermission(auth.CacheRead), h.handleCacheStats)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
