package utils

import (
	"cdi-map/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedisFromEnv：REDIS_ENABLE 开启时按 REDIS_HOST/PORT/PASS/DB 打开客户端，否则返回 nil
// 约束：REDIS_DB 非法或为负时回退到 0；不在此处探测连通性，缓存层遇错自行降级
func OpenRedisFromEnv() *redis.Client {
	if !EnvBool("REDIS_ENABLE") {
		return nil
	}
	addr := envOr("REDIS_HOST", "127.0.0.1") + ":" + envOr("REDIS_PORT", "6379")
	db := envInt("REDIS_DB", 0)
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: envOr("REDIS_PASS", ""), DB: db})
}
