package builtin

import (
	lua "github.com/yuin/gopher-lua"

	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

type CustomLuaBuilder struct{}

func (b *CustomLuaBuilder) Build(cfg *strategy.Config) (strategy.Strategy, error) {
	if cfg.Script == "" {
		return nil, errcode.ErrBadLuaScript
	}
	return &CustomLuaStrategy{script: cfg.Script}, nil
}

// CustomLuaStrategy 自定义选择逻辑：脚本需定义
//
//	function select(ctx, endpoints) ... end
//
// endpoints 是 addr 数组，返回 0 起始的下标，-1 表示无可用 endpoint
type CustomLuaStrategy struct {
	script string
}

func (r *CustomLuaStrategy) Name() string { return StrategyCustomLua }

func (r *CustomLuaStrategy) Select(view strategy.PoolView, sctx *types.SelectionContext) (*types.Endpoint, error) {
	endpoints := view.Usable()
	if len(endpoints) == 0 {
		return nil, errcode.ErrPoolExhausted
	}

	luaState := lua.NewState()
	defer luaState.Close()
	if err := luaState.DoFile(r.script); err != nil {
		return nil, errcode.ErrBadLuaScript.WithData(map[string]string{"script": r.script, "error": err.Error()})
	}

	luaCtx := luaState.NewTable()
	if sctx != nil {
		luaCtx.RawSetString("session_key", lua.LString(sctx.SessionKey))
		luaCtx.RawSetString("target_domain", lua.LString(sctx.TargetDomain))
		luaCtx.RawSetString("country", lua.LString(sctx.Country))
		luaCtx.RawSetString("region", lua.LString(sctx.Region))
	}
	luaEndpoints := luaState.NewTable()
	for _, ep := range endpoints {
		luaEndpoints.Append(lua.LString(ep.Addr()))
	}

	err := luaState.CallByParam(lua.P{
		Fn:   luaState.GetGlobal("select"),
		NRet: 1,
	}, luaCtx, luaEndpoints)
	if err != nil {
		return nil, errcode.ErrBadLuaScript.WithData(map[string]string{"script": r.script, "error": err.Error()})
	}

	idx := luaState.ToInt(-1)
	if idx == -1 {
		return nil, errcode.ErrPoolExhausted
	}
	if idx < 0 || idx >= len(endpoints) {
		return nil, errcode.ErrLuaIndexOutOfRange
	}
	return endpoints[idx], nil
}

func (r *CustomLuaStrategy) RecordResult(_ *types.Endpoint, _ bool, _ float64) {}
