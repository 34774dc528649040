package config

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisOptions builds client options from REDIS_URL, or from REDIS_ADDR /
// REDIS_HOST+REDIS_PORT, REDIS_PASSWORD, REDIS_DB and REDIS_TLS.
func redisOptions() (*redis.Options, error) {
	if url := envStr("REDIS_URL", ""); url != "" {
		return redis.ParseURL(url)
	}
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = host + ":" + port
	}
	opt := &redis.Options{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
	}
	if envBool("REDIS_TLS", false) {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opt, nil
}

// NewRedisClient returns nil when Redis is not configured correctly or does
// not answer a ping.  Callers then fall back: the submission lock and resend
// debounce move into process memory, rate limiting and caching switch off.
func NewRedisClient() *redis.Client {
	if !envBool("REDIS_ENABLED", true) {
		log.Println("redis: disabled")
		return nil
	}
	opt, err := redisOptions()
	if err != nil {
		log.Printf("redis: bad REDIS_URL: %v; running without redis", err)
		return nil
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis: %s unreachable (%v); running without redis", opt.Addr, err)
		_ = client.Close()
		return nil
	}
	return client
}
