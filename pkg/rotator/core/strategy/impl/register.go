package builtin

import (
	"proxy-rotator/pkg/rotator/core/strategy"
)

const (
	StrategyRoundRobin  = "round_robin"  // 轮询
	StrategyRandom      = "random"       // 随机
	StrategyWeighted    = "weighted"     // 加权随机
	StrategyLeastUsed   = "least_used"   // 最少使用
	StrategyPerformance = "performance"  // 响应时间最优
	StrategySession     = "session"      // 会话亲和
	StrategyGeo         = "geo"          // 地域定向
	StrategyCostAware   = "cost_aware"   // 成本感知
	StrategyComposite   = "composite"    // 过滤管道+终端选择器
	StrategyCustomLua   = "custom_lua"   // 自定义 lua 脚本
)

// Register 向 registry 注册全部内建策略
func Register(r *strategy.Registry) {
	r.Register(StrategyRoundRobin, &RoundRobinBuilder{})
	r.Register(StrategyRandom, &RandomBuilder{})
	r.Register(StrategyWeighted, &WeightedBuilder{})
	r.Register(StrategyLeastUsed, &LeastUsedBuilder{})
	r.Register(StrategyPerformance, &PerformanceBuilder{})
	r.Register(StrategySession, &SessionBuilder{})
	r.Register(StrategyGeo, &GeoBuilder{})
	r.Register(StrategyCostAware, &CostAwareBuilder{})
	r.Register(StrategyComposite, &CompositeBuilder{})
	r.Register(StrategyCustomLua, &CustomLuaBuilder{})
}
