// internal/zookeeper/conn.go
package zookeeper

import (
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"
)

// Conn 是对 zk.Conn 的薄封装，统一建连和关闭
type Conn struct {
	*zk.Conn
}

// Connect 建立 ZooKeeper 会话
// sessionTimeout 决定了持锁进程崩溃后临时节点多久被清理
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("connect zookeeper %v: %w", servers, err)
	}
	return &Conn{Conn: conn}, nil
}

// EnsurePath 逐级创建持久节点，已存在时不报错
func (c *Conn) EnsurePath(path string) error {
	exists, _, err := c.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = c.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("create node %s: %w", path, err)
	}
	return nil
}
