package source

import (
	"context"
	"os"
	"strconv"
	"time"

	"cdi-map/internal/logger"
	"cdi-map/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// 文档注释：带缓存的拉取器
// 背景：区域间来回切换会重复拉取同一份几何与表格；进程内 LRU 为一级缓存，Redis（可选）为多实例共享的二级缓存，
// 并发的同 URL 请求经 singleflight 合并为一次上游调用。
// 约束：缓存值为原始字节，调用方每次都重新解析，解析结果不共享；Redis 异常只记录日志并回退到上游。
// 合并后的上游调用不随任一调用方的 ctx 取消（超时仍由上游 Fetcher 自身控制），各调用方只按自己的 ctx 放弃等待。
type CachedFetcher struct {
	next     Fetcher
	lru      *expirable.LRU[string, []byte]
	rc       *redis.Client
	redisTTL time.Duration
	group    singleflight.Group
}

type CacheOptions struct {
	Size     int
	TTL      time.Duration
	Redis    *redis.Client
	RedisTTL time.Duration
}

func NewCachedFetcher(next Fetcher, opt CacheOptions) *CachedFetcher {
	if opt.Size <= 0 {
		opt.Size = 64
	}
	if opt.TTL <= 0 {
		opt.TTL = 5 * time.Minute
	}
	if opt.RedisTTL <= 0 {
		opt.RedisTTL = time.Hour
	}
	return &CachedFetcher{
		next:     next,
		lru:      expirable.NewLRU[string, []byte](opt.Size, nil, opt.TTL),
		rc:       opt.Redis,
		redisTTL: opt.RedisTTL,
	}
}

// CacheOptionsFromEnv：读取 FETCH_CACHE_SIZE / FETCH_CACHE_TTL_S / REDIS_CACHE_TTL_S
func CacheOptionsFromEnv(rc *redis.Client) CacheOptions {
	opt := CacheOptions{Size: 64, TTL: 300 * time.Second, Redis: rc, RedisTTL: time.Hour}
	if s := os.Getenv("FETCH_CACHE_SIZE"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			opt.Size = n
		}
	}
	if s := os.Getenv("FETCH_CACHE_TTL_S"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			opt.TTL = time.Duration(n) * time.Second
		}
	}
	if s := os.Getenv("REDIS_CACHE_TTL_S"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			opt.RedisTTL = time.Duration(n) * time.Second
		}
	}
	return opt
}

func redisKey(ref string) string { return "cdimap:src:" + ref }

func (c *CachedFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if b, ok := c.lru.Get(ref); ok {
		metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
		return b, nil
	}
	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(ref, func() (any, error) {
		ctx := fctx
		if c.rc != nil {
			b, err := c.rc.Get(ctx, redisKey(ref)).Bytes()
			if err == nil {
				metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
				c.lru.Add(ref, b)
				return b, nil
			}
			if err != redis.Nil {
				logger.L().Debug("fetch_cache_redis_error", "ref", ref, "err", err)
			}
		}
		metrics.CacheMissesTotal.Inc()
		b, err := c.next.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		c.lru.Add(ref, b)
		if c.rc != nil {
			if err := c.rc.Set(ctx, redisKey(ref), b, c.redisTTL).Err(); err != nil {
				logger.L().Debug("fetch_cache_redis_set_error", "ref", ref, "err", err)
			}
		}
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.L().Debug("fetch_shared", "ref", ref)
		}
		return res.Val.([]byte), nil
	}
}

// Purge：清空一级缓存（数据文件更新后由管理端触发）
func (c *CachedFetcher) Purge() { c.lru.Purge() }

// 文档注释：按类别加载资源并记录指标
// 返回：失败时统一包装为对应 Kind 的 LoadError。
func Load(ctx context.Context, f Fetcher, kind Kind, ref string) ([]byte, error) {
	t0 := time.Now()
	b, err := f.Fetch(ctx, ref)
	metrics.FetchDurationMs.WithLabelValues(string(kind)).Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		metrics.FetchTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, Wrap(kind, ref, err)
	}
	metrics.FetchTotal.WithLabelValues(string(kind), "ok").Inc()
	return b, nil
}
