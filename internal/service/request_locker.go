package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	pkgerrors "exeat/backend/pkg/errors"
	"exeat/backend/pkg/redis"
)

// RequestLocker 按申请 ID 串行化状态流转
// 单实例用进程内互斥锁；多实例部署注入 Redis 实现。事务内另有行级锁兜底
type RequestLocker interface {
	Lock(ctx context.Context, requestID string) (unlock func(), err error)
}

// ── 进程内实现 ──

type localLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建进程内按键互斥锁
func NewLocalLocker() RequestLocker {
	return &localLocker{locks: make(map[string]*localLock)}
}

func (l *localLocker) Lock(ctx context.Context, requestID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[requestID]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[requestID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(requestID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(requestID, lk)
		})
	}, nil
}

func (l *localLocker) release(requestID string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, requestID)
	}
}

// ── Redis 实现 ──

const lockRetryInterval = 50 * time.Millisecond

type redisLocker struct {
	client   *redis.Client
	ttl      time.Duration
	wait     time.Duration
	fallback RequestLocker
	logger   *zap.Logger
}

// NewRequestLocker client 为 nil 时返回进程内实现
// Redis 不可用时降级为进程内锁，由数据库行锁保证正确性
func NewRequestLocker(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) RequestLocker {
	local := NewLocalLocker()
	if client == nil {
		return local
	}
	return &redisLocker{client: client, ttl: ttl, wait: wait, fallback: local, logger: logger}
}

func (l *redisLocker) Lock(ctx context.Context, requestID string) (func(), error) {
	key := "exeat:" + requestID
	deadline := time.Now().Add(l.wait)

	for {
		owner, ok, err := l.client.TryLock(ctx, key, l.ttl)
		if err != nil {
			l.logger.Warn("Redis 加锁失败，降级为进程内锁", zap.String("request_id", requestID), zap.Error(err))
			return l.fallback.Lock(ctx, requestID)
		}
		if ok {
			return func() {
				// 请求上下文可能已取消，释放锁使用独立上下文
				unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := l.client.Unlock(unlockCtx, key, owner); err != nil {
					l.logger.Warn("释放请求锁失败", zap.String("request_id", requestID), zap.Error(err))
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, pkgerrors.ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
