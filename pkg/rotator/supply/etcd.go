package supply

import (
	"context"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"

	"proxy-rotator/pkg/rotator/config"
	"proxy-rotator/pkg/rotator/core/pool"
	"proxy-rotator/pkg/rotator/core/types"
	"proxy-rotator/pkg/rotator/logger"
)

const defaultPrefix = "/rotator/endpoints"

// NewClient 创建 etcd 客户端
func NewClient(cfg *config.ETCDConfig) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
}

// Watcher 把 etcd 上注册的 endpoint 同步进 pool。
// key 为 <prefix>/<addr>，value 是 endpoint 的 json。
// core 对供给源无感知，这里只调 pool 的增删接口。
type Watcher struct {
	cli    *clientv3.Client
	prefix string
	pool   *pool.Pool
}

func NewWatcher(cli *clientv3.Client, prefix string, p *pool.Pool) *Watcher {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Watcher{cli: cli, prefix: prefix, pool: p}
}

// Run 先全量加载再增量监听，ctx 取消时返回
func (w *Watcher) Run(ctx context.Context) error {
	resp, err := w.cli.Get(ctx, w.prefix, clientv3.WithPrefix())
	if err != nil {
		return err
	}
	for _, kv := range resp.Kvs {
		w.put(kv.Key, kv.Value)
	}
	logger.Infof("supply: loaded %d endpoints from etcd prefix %s", len(resp.Kvs), w.prefix)

	wch := w.cli.Watch(ctx, w.prefix,
		clientv3.WithPrefix(),
		clientv3.WithRev(resp.Header.Revision+1))
	for wresp := range wch {
		if err := wresp.Err(); err != nil {
			return err
		}
		for _, ev := range wresp.Events {
			switch ev.Type {
			case clientv3.EventTypePut:
				w.put(ev.Kv.Key, ev.Kv.Value)
			case clientv3.EventTypeDelete:
				addr := w.addrFromKey(ev.Kv.Key)
				w.pool.Remove(addr)
				logger.Infof("supply: endpoint %s removed", addr)
			}
		}
	}
	return ctx.Err()
}

func (w *Watcher) put(key, value []byte) {
	ep, err := types.EndpointFromJSON(value)
	if err != nil || !ep.Protocol.Valid() {
		logger.Warnf("supply: bad endpoint at %s: %v", string(key), err)
		return
	}
	w.pool.Add(ep)
	logger.Debugf("supply: endpoint %s added", ep.Addr())
}

func (w *Watcher) addrFromKey(key []byte) string {
	return strings.TrimPrefix(strings.TrimPrefix(string(key), w.prefix), "/")
}
