// internal/pkg/zookeeper/conn.go
package zookeeper

import (
	"time"

	"buyone/internal/pkg/logger"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

// Conn 包装 *zk.Conn，屏蔽 go-zookeeper 默认的标准库日志。
type Conn struct {
	*zk.Conn
}

type zkLogger struct{}

func (zkLogger) Printf(format string, args ...interface{}) {
	logger.Logger().Debug().Msgf(format, args...)
}

// Connect 建立会话并等待首次连接成功。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	if len(servers) == 0 {
		return nil, errors.New("zookeeper: no servers configured")
	}
	c, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, errors.Wrap(err, "zookeeper: connect")
	}

	timeout := time.After(sessionTimeout)
	for {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				logger.Logger().Info().Strs("servers", servers).Msg("✅ Connected to ZooKeeper")
				return &Conn{Conn: c}, nil
			}
		case <-timeout:
			c.Close()
			return nil, errors.Errorf("zookeeper: no session within %s", sessionTimeout)
		}
	}
}
