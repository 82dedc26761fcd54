package adapter

import (
	"context"

	"buyone/internal/pkg/logger"
	"buyone/internal/pkg/zookeeper"
	"buyone/internal/service/inventory/domain/port"
)

// ZookeeperLockAdapter 用 ZooKeeper 临时顺序节点实现 port.Locker，保证同一时刻只有一个副本执行回收。
type ZookeeperLockAdapter struct {
	conn *zookeeper.Conn
}

func NewZookeeperLockAdapter(conn *zookeeper.Conn) *ZookeeperLockAdapter {
	return &ZookeeperLockAdapter{conn: conn}
}

var _ port.Locker = (*ZookeeperLockAdapter)(nil)

func (a *ZookeeperLockAdapter) TryLock(ctx context.Context, name string) (func(), bool, error) {
	lock, err := zookeeper.NewDistributedLock(a.conn, name)
	if err != nil {
		return nil, false, err
	}
	acquired, err := lock.TryLock()
	if err != nil || !acquired {
		return nil, false, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("lock", name).Msg("Failed to release zookeeper lock")
		}
	}, true, nil
}
