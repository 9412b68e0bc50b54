package infrastructure

import (
	"context"
	"errors"
	"time"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
	"github.com/zhangzw218/EShop/internal/zookeeper"
)

// ZkLockAdapter 把 ZooKeeper 分布式锁接到领域侧的锁端口上
// 超时视为“没抢到”而非错误，由调用方按并发冲突处理
type ZkLockAdapter struct {
	conn *zookeeper.Conn
}

func NewZkLockAdapter(conn *zookeeper.Conn) *ZkLockAdapter {
	return &ZkLockAdapter{conn: conn}
}

var _ port.DistributedLock = (*ZkLockAdapter)(nil)

func (a *ZkLockAdapter) TryAcquire(ctx context.Context, key string, timeout time.Duration) (port.LockHandle, error) {
	lock, err := zookeeper.NewDistributedLock(a.conn, key)
	if err != nil {
		return nil, err
	}
	if err := lock.TryLock(ctx, timeout); err != nil {
		if errors.Is(err, zookeeper.ErrLockTimeout) {
			return nil, nil
		}
		return nil, err
	}
	return &zkLockHandle{lock: lock}, nil
}

type zkLockHandle struct {
	lock *zookeeper.DistributedLock
}

func (h *zkLockHandle) Release() error {
	return h.lock.Unlock()
}
