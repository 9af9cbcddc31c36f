package api

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// 登录保护用到的 Redis key 布局：
//   rate:login:<ip>:<email>:<小时桶>  固定窗口计数
//   lock:login:fail:<email>           连续失败计数
//   lock:login:<email>                锁定标记
func loginRateKey(ip, email string, now time.Time) string {
	return "rate:login:" + ip + ":" + strings.ToLower(email) + ":" + now.UTC().Format("2006010215")
}

func loginFailKey(email string) string {
	return "lock:login:fail:" + strings.ToLower(email)
}

func loginLockKey(email string) string {
	return "lock:login:" + strings.ToLower(email)
}

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// incrWithTTL 自增计数，首次创建时设置过期，保证 key 不会永久存活。
func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}
