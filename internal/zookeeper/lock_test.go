package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"
)

// 需要本地 ZooKeeper，连不上就跳过
func newTestConn(t *testing.T) *Conn {
	t.Helper()
	// Connect 是异步的, 先做一次同步拨号确认本机有 zookeeper 在监听
	raw, err := net.DialTimeout("tcp", "127.0.0.1:2181", time.Second)
	if err != nil {
		t.Skipf("zookeeper not available: %v", err)
	}
	raw.Close()
	conn, err := Connect([]string{"127.0.0.1:2181"}, 2*time.Second)
	if err != nil {
		t.Skipf("zookeeper not available: %v", err)
	}
	t.Cleanup(conn.Close)
	return conn
}

func TestDistributedLock_MutualExclusion(t *testing.T) {
	conn := newTestConn(t)
	resource := fmt.Sprintf("test-lock-%d", time.Now().UnixNano())

	ctx := context.Background()
	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := NewDistributedLock(conn, resource)
			if err != nil {
				t.Errorf("new lock: %v", err)
				return
			}
			if err := lock.TryLock(ctx, 10*time.Second); err != nil {
				t.Errorf("try lock: %v", err)
				return
			}
			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
			if err := lock.Unlock(); err != nil {
				t.Errorf("unlock: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Fatalf("critical section held by %d goroutines at once", maxInCritical)
	}
}

func TestDistributedLock_Timeout(t *testing.T) {
	conn := newTestConn(t)
	resource := fmt.Sprintf("test-lock-%d", time.Now().UnixNano())

	ctx := context.Background()
	holder, err := NewDistributedLock(conn, resource)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if err := holder.TryLock(ctx, 5*time.Second); err != nil {
		t.Fatalf("holder try lock: %v", err)
	}
	defer func() { _ = holder.Unlock() }()

	waiter, err := NewDistributedLock(conn, resource)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if err := waiter.TryLock(ctx, 300*time.Millisecond); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}
