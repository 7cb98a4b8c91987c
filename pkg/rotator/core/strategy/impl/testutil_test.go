package builtin

import (
	"proxy-rotator/pkg/rotator/core/pool"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

func testEndpoint(host string, port uint32) *types.Endpoint {
	return &types.Endpoint{Host: host, Port: port, Protocol: types.ProtocolHTTP}
}

func testPool(endpoints ...*types.Endpoint) *pool.Pool {
	p := pool.New(pool.DefaultAlpha)
	for _, ep := range endpoints {
		p.Add(ep)
	}
	return p
}

func testRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
