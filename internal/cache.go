package internal

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var rdb *redis.Client
var ctx = context.Background()
var memCache *gocache.Cache

var redisDataExpiration time.Duration
var memoryDataExpiration time.Duration

var redisInitialized bool

// InitCache initializes the tiered cache backed by a redis sentinel cluster.
// In DRY_RUN mode only the in-memory tier is used.
func InitCache(redisURI string, redisURI2 string, redisURI3 string, redisPassword string, redisDB int, dryRun string) {

	if dryRun == "True" || dryRun == "true" {
		zap.S().Infof("Running cache in DRY_RUN mode. This means that redis will not be used")
		InitMemcache()
		return
	}

	var failOverOptions = redis.FailoverOptions{
		MasterName:       "mymaster",
		SentinelAddrs:    []string{redisURI, redisURI2, redisURI3},
		SentinelPassword: redisPassword,
		Password:         redisPassword,
		DB:               redisDB,
	}
	zap.S().Debugf("Initializing redis cache with options: %#v", failOverOptions)

	rdb = redis.NewFailoverClient(&failOverOptions)

	redisDataExpiration = 12 * time.Hour
	memoryDataExpiration = 10 * time.Second

	memCache = gocache.New(memoryDataExpiration, 20*time.Second)
	redisInitialized = true
}

// InitMemcache sets up the in-memory tier only. Used in tests and DRY_RUN.
func InitMemcache() {
	memoryDataExpiration = 10 * time.Second
	memCache = gocache.New(memoryDataExpiration, 20*time.Second)
	redisInitialized = false
}

func IsRedisAvailable() bool {
	if !redisInitialized {
		zap.S().Warn("Redis is not initialized")
		return false
	}
	if rdb != nil {
		timeout, cancel := context.WithTimeout(ctx, time.Second*10)
		defer cancel()
		statusCmd := rdb.Ping(timeout)

		if statusCmd != nil && statusCmd.Val() == "PONG" {
			return true
		}
		zap.S().Debugf("Redis Error: %s", statusCmd)
	}
	return false
}

// GetTiered attempts to get key from the memory cache, falling back to redis
func GetTiered(key string) (cached bool, value interface{}) {
	if memCache == nil {
		return false, nil
	}
	value, cached = memCache.Get(key)
	if cached {
		zap.S().Debugf("Found %s in memcache", key)
		return
	}
	if !redisInitialized {
		return false, nil
	}

	var err error
	d := time.Now().Add(memoryDataExpiration)
	rctx, cancel := context.WithDeadline(context.Background(), d)
	defer cancel()

	value, err = rdb.Get(rctx, key).Bytes()
	if err != nil {
		zap.S().Debugf("%s not found in redis", key)
		return false, nil
	}
	cached = true
	zap.S().Debugf("Found %s in redis", key)

	// Write back to memCache
	memCache.SetDefault(key, value)
	return
}

// SetTiered sets memcache and redis with expiration
func SetTiered(key string, value interface{}, redisExpiration time.Duration) {
	if memCache == nil {
		return
	}
	memCache.SetDefault(key, value)
	if redisInitialized {
		rdb.Set(ctx, key, value, redisExpiration)
	}
}

// SetTieredShortTerm is a helper, that calls SetTiered with default memory expiration
func SetTieredShortTerm(key string, value interface{}) {
	SetTiered(key, value, memoryDataExpiration)
}

// InvalidateTiered drops a key from both tiers. Called after writes so reads
// do not serve stale entity state for longer than the redis round trip.
func InvalidateTiered(key string) {
	if memCache == nil {
		return
	}
	memCache.Delete(key)
	if redisInitialized {
		rdb.Del(ctx, key)
	}
}
