package strategy

import (
	"sort"
	"sync"
	"time"

	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/types"
)

// PoolView 策略可见的只读池视图。过滤类策略通过构造子视图收窄候选集。
type PoolView interface {
	// Usable 未过期且健康可用的 endpoint，插入顺序稳定
	Usable() []*types.Endpoint
	Stats(addr string) (types.EndpointStats, bool)
}

// Strategy 选择策略。Select 无候选时返回 ErrPoolExhausted，从不返回 nil endpoint。
// 有状态的策略通过 RecordResult 学习每次调用的结果。
type Strategy interface {
	Name() string
	Select(view PoolView, sctx *types.SelectionContext) (*types.Endpoint, error)
	RecordResult(endpoint *types.Endpoint, success bool, latencyMs float64)
}

// Filter 收窄候选集，composite 策略的管道阶段
type Filter interface {
	Name() string
	Apply(view PoolView, candidates []*types.Endpoint, sctx *types.SelectionContext) []*types.Endpoint
}

// Config 策略构建配置，字段按策略取用
type Config struct {
	Name string `yaml:"name"`

	Underlying string        `yaml:"underlying"` // session/geo 的底层策略，默认 round_robin
	SessionTTL time.Duration `yaml:"sessionTTL"` // 亲和绑定存活时间

	// geo 无匹配时的策略必须显式配置：回退全量池或直接失败
	GeoFallback bool `yaml:"geoFallback"`

	MaxCost       float64 `yaml:"maxCost"`
	PreferQuality bool    `yaml:"preferQuality"` // cost_aware 按质量性价比选而不是最低价

	NeutralLatencyMs float64 `yaml:"neutralLatencyMs"` // performance 策略无 EWMA 样本时的默认档

	Script string `yaml:"script"` // custom_lua 脚本路径

	Filters  []string `yaml:"filters"`  // composite 的过滤阶段
	Terminal string   `yaml:"terminal"` // composite 的终端选择器

	// 构建子策略用，由 Registry.Build 注入
	Registry *Registry `yaml:"-"`
}

type Builder interface {
	Build(cfg *Config) (Strategy, error)
}

// BuilderFunc 函数式 Builder
type BuilderFunc func(cfg *Config) (Strategy, error)

func (f BuilderFunc) Build(cfg *Config) (Strategy, error) { return f(cfg) }

// Registry 名字到构造器的映射。显式实例而不是进程级全局，方便测试隔离。
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register 同名覆盖，后注册的生效
func (r *Registry) Register(name string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = b
}

// Build 未知名字返回 ErrStrategyNotFound，不会静默回退到默认策略
func (r *Registry) Build(cfg *Config) (Strategy, error) {
	r.mu.RLock()
	b, ok := r.builders[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, errcode.ErrStrategyNotFound.WithData(map[string]string{"strategy": cfg.Name})
	}
	if cfg.Registry == nil {
		cfg.Registry = r
	}
	return b.Build(cfg)
}

// BuildByName 只有名字没有其它配置时的快捷方式
func (r *Registry) BuildByName(name string) (Strategy, error) {
	return r.Build(&Config{Name: name})
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StaticView 固定候选列表，计数穿透到父视图
type StaticView struct {
	parent    PoolView
	endpoints []*types.Endpoint
}

func NewStaticView(parent PoolView, endpoints []*types.Endpoint) *StaticView {
	return &StaticView{parent: parent, endpoints: endpoints}
}

func (v *StaticView) Usable() []*types.Endpoint { return v.endpoints }

func (v *StaticView) Stats(addr string) (types.EndpointStats, bool) {
	return v.parent.Stats(addr)
}
