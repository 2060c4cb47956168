package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/user/movie-explorer/internal/logging"
)

var (
	// ErrLocked 已有导入任务在运行
	ErrLocked = errors.New("seed lock held by another run")
	// ErrLockLost 续期时发现锁已过期或被他人持有
	ErrLockLost = errors.New("seed lock lost")
)

// Locker 导入任务的单写锁
// Acquire 返回的 context 在锁丢失或释放后取消，导入过程应使用它
type Locker interface {
	Acquire(ctx context.Context) (lockCtx context.Context, release func(), err error)
}

// NoopLock 未配置 Redis 时使用
type NoopLock struct{}

func (NoopLock) Acquire(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

// 只删除自己持有的锁
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// 只给自己持有的锁续期
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)

// RedisLock 基于 SET NX PX 的分布式锁，持有期间每 ttl/3 续期一次
type RedisLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisLock{client: client, key: key, ttl: ttl}
}

// NewRedisLockFromURL 解析 redis:// 地址创建锁
func NewRedisLockFromURL(rawURL, key string, ttl time.Duration) (*RedisLock, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("解析 REDIS_URL 失败: %w", err)
	}
	return NewRedisLock(redis.NewClient(opt), key, ttl), nil
}

func (l *RedisLock) Acquire(ctx context.Context) (context.Context, func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("获取导入锁失败: %w", err)
	}
	if !ok {
		return nil, nil, ErrLocked
	}

	lockCtx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(lockCtx, token, cancel, stop, stopped)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-stopped
			cancel(nil)

			ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := unlockScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
				logging.Warn().Err(err).Str("key", l.key).Msg("[Seed] 释放导入锁失败")
			}
		})
	}
	return lockCtx, release, nil
}

// keepAlive 定期续期；续期返回 0 说明锁已不属于自己，取消 lockCtx
// Redis 暂时不可用时只记录日志，恢复后若锁已过期同样会发现
func (l *RedisLock) keepAlive(ctx context.Context, token string, cancel context.CancelCauseFunc, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rctx, done := context.WithTimeout(context.Background(), interval)
		n, err := renewScript.Run(rctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
		done()
		switch {
		case err != nil:
			logging.Warn().Err(err).Str("key", l.key).Msg("[Seed] 导入锁续期失败，稍后重试")
		case n == 0:
			logging.Error().Str("key", l.key).Msg("[Seed] 导入锁已丢失，停止导入")
			cancel(ErrLockLost)
			return
		}
	}
}

// Close 关闭 Redis 连接
func (l *RedisLock) Close() error {
	return l.client.Close()
}
