package port

import (
	"context"
	"time"
)

// LockHandle 代表对一个命名资源的独占持有
type LockHandle interface {
	// Release 释放锁，所有退出路径上都必须调用
	Release() error
}

// DistributedLock 是跨进程互斥锁的出站端口
// 非可重入；实现必须支持租约过期，持有者崩溃后锁要能自动失效
type DistributedLock interface {
	// TryAcquire 在 timeout 内尝试获取 key 上的锁
	// 超时返回 (nil, nil)，调用方据此判定并发冲突；其它错误原样返回
	TryAcquire(ctx context.Context, key string, timeout time.Duration) (LockHandle, error)
}
