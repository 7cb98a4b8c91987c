package store

import (
	"context"
	"time"

	"proxy-rotator/pkg/rotator/core/pool"
	"proxy-rotator/pkg/rotator/core/types"
	"proxy-rotator/pkg/rotator/logger"
)

// Snapshot pool 内容的某一时刻快照
type Snapshot struct {
	Endpoints []*types.Endpoint              `json:"endpoints"`
	Stats     map[string]types.EndpointStats `json:"stats,omitempty"`
	Updated   time.Time                      `json:"updated"`
}

// Store 快照持久化。core 不关心存储格式，只暴露读取接口给这里用。
type Store interface {
	// Load 没有历史快照时返回 (nil, nil)
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Capture 抓取当前 pool 的快照
func Capture(p *pool.Pool) *Snapshot {
	return &Snapshot{
		Endpoints: p.All(),
		Stats:     p.StatsAll(),
		Updated:   time.Now(),
	}
}

// Restore 把快照灌回 pool，健康状态一并恢复
func Restore(p *pool.Pool, s *Snapshot) {
	if s == nil {
		return
	}
	for _, ep := range s.Endpoints {
		p.Add(ep)
		if stats, ok := s.Stats[ep.Addr()]; ok && stats.Status != "" {
			p.SetStatus(ep.Addr(), stats.Status)
		}
	}
}

// RunSnapshots 周期性落盘，ctx 取消时退出
func RunSnapshots(ctx context.Context, st Store, p *pool.Pool, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.Save(ctx, Capture(p)); err != nil {
				logger.Errorf("snapshot save failed: %v", err)
			}
		}
	}
}
