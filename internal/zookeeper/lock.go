// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
)

// ErrLockTimeout 表示在限定时间内没有等到锁
var ErrLockTimeout = errors.New("timeout waiting for lock")

// DistributedLock 基于临时顺序节点实现的分布式互斥锁
// 非可重入；会话断开后临时节点自动删除，持有者崩溃不会造成永久死锁
type DistributedLock struct {
	conn     *Conn
	path     string // 锁的路径，例如 /distributed_locks/creating-result_p1-u1
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个锁实例，并确保锁路径存在
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	if err := conn.EnsurePath(lockRoot); err != nil {
		return nil, fmt.Errorf("ensure lock root: %w", err)
	}

	lockPath := lockRoot + "/" + resourceID
	if err := conn.EnsurePath(lockPath); err != nil {
		return nil, fmt.Errorf("ensure lock path %s: %w", lockPath, err)
	}

	return &DistributedLock{
		conn: conn,
		path: lockPath,
	}, nil
}

// TryLock 在 timeout 内尝试获取锁，等不到则返回 ErrLockTimeout
// ctx 取消时同样放弃等待
func (l *DistributedLock) TryLock(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		// 2. 获取锁路径下的所有子节点并排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		// 3. 自己是最小节点则获得锁
		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 4. 否则监听排在自己前面的那个节点
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			l.abandon()
			return errors.New("own lock node missing from children list")
		}
		prevNodePath := l.path + "/" + children[prevNodeIndex]

		_, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			// 前一个节点恰好在检查时被删除，重试竞争
			if err == zk.ErrNoNode {
				continue
			}
			l.abandon()
			return fmt.Errorf("failed to watch previous node: %w", err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.abandon()
			return ErrLockTimeout
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(remaining):
			l.abandon()
			return ErrLockTimeout
		case <-ctx.Done():
			l.abandon()
			return ctx.Err()
		}
	}
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}

// abandon 清理等待失败后残留的顺序节点，避免阻塞后来者
func (l *DistributedLock) abandon() {
	if l.lockNode == "" {
		return
	}
	_ = l.conn.Delete(l.lockNode, -1)
	l.lockNode = ""
}
