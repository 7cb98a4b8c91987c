package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Protocol 代表 proxy endpoint 的协议类型
type Protocol string

const (
	ProtocolHTTP   = Protocol("http")
	ProtocolHTTPS  = Protocol("https")
	ProtocolSOCKS4 = Protocol("socks4")
	ProtocolSOCKS5 = Protocol("socks5")
)

func (p Protocol) Valid() bool {
	switch p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolSOCKS4, ProtocolSOCKS5:
		return true
	}
	return false
}

// HealthStatus endpoint 的健康状态，由外部健康检查上报
type HealthStatus string

const (
	HealthUnknown   = HealthStatus("unknown")
	HealthHealthy   = HealthStatus("healthy")
	HealthDegraded  = HealthStatus("degraded")
	HealthUnhealthy = HealthStatus("unhealthy")
	HealthDead      = HealthStatus("dead")
)

// Usable unhealthy/dead 的 endpoint 不参与选择
func (s HealthStatus) Usable() bool {
	return s != HealthUnhealthy && s != HealthDead
}

// Endpoint 代表一个 proxy 目标，身份由 host:port 唯一确定。
// 健康与性能计数不在这里，由 pool 持有。
type Endpoint struct {
	Host     string   `yaml:"host" json:"host"`
	Port     uint32   `yaml:"port" json:"port"`
	Protocol Protocol `yaml:"protocol" json:"protocol"`

	Username string `yaml:"username" json:"username,omitempty"`
	Password string `yaml:"password" json:"-"` // 不落日志、不落盘

	// TTL 为 0 表示永不过期；ExpiresAt 由 pool 在加入时根据 TTL 推导
	TTL       time.Duration `yaml:"ttl" json:"ttl,omitempty"`
	ExpiresAt time.Time     `yaml:"-" json:"expires_at,omitempty"`

	Country    string  `yaml:"country" json:"country,omitempty"`
	Region     string  `yaml:"region" json:"region,omitempty"`
	CostWeight float64 `yaml:"cost" json:"cost,omitempty"`
	Quality    float64 `yaml:"quality" json:"quality,omitempty"`
}

// Addr 稳定的身份键
func (e *Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

func (e *Endpoint) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// String json 序列化，Password 字段已脱敏
func (e *Endpoint) String() string {
	bytes, err := json.Marshal(e)
	if err != nil {
		return err.Error()
	}
	return string(bytes)
}

func EndpointFromJSON(data []byte) (*Endpoint, error) {
	e := &Endpoint{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SelectionContext 调用方附带的选择提示，策略按需取用
type SelectionContext struct {
	SessionKey   string             `json:"session_key,omitempty"`   // 会话亲和键
	TargetDomain string             `json:"target_domain,omitempty"` // 目标域名，无 SessionKey 时作为亲和键
	Country      string             `json:"country,omitempty"`
	Region       string             `json:"region,omitempty"`
	MaxCost      float64            `json:"max_cost,omitempty"` // 0 表示不限
	Weights      map[string]float64 `json:"weights,omitempty"`  // addr -> 权重覆盖
}

// AffinityKey SessionKey 优先，其次 TargetDomain
func (c *SelectionContext) AffinityKey() string {
	if c == nil {
		return ""
	}
	if c.SessionKey != "" {
		return c.SessionKey
	}
	return c.TargetDomain
}

// EndpointStats pool 中单个 endpoint 计数的快照
type EndpointStats struct {
	Status            HealthStatus `json:"status"`
	RequestsStarted   uint64       `json:"requests_started"`
	RequestsCompleted uint64       `json:"requests_completed"`
	Successes         uint64       `json:"successes"`
	EWMALatencyMs     float64      `json:"ewma_latency_ms,omitempty"`
	HasEWMA           bool         `json:"has_ewma"`
}

// SuccessRate 平滑后的成功率，无样本时为 1
func (s EndpointStats) SuccessRate() float64 {
	return float64(s.Successes+1) / float64(s.RequestsCompleted+1)
}
