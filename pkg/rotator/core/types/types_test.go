package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEndpointAddr(t *testing.T) {
	ep := &Endpoint{Host: "10.0.0.1", Port: 8080}
	assert.Equal(t, "10.0.0.1:8080", ep.Addr())
}

func TestEndpointExpired(t *testing.T) {
	now := time.Now()

	// 零值 ExpiresAt 永不过期
	assert.False(t, (&Endpoint{}).Expired(now))
	assert.False(t, (&Endpoint{ExpiresAt: now.Add(time.Hour)}).Expired(now))
	assert.True(t, (&Endpoint{ExpiresAt: now.Add(-time.Hour)}).Expired(now))
}

func TestEndpointStringRedactsPassword(t *testing.T) {
	ep := &Endpoint{Host: "a", Port: 1, Username: "user", Password: "hunter2"}
	s := ep.String()
	assert.Contains(t, s, "user")
	assert.NotContains(t, s, "hunter2")
}

func TestEndpointFromJSON(t *testing.T) {
	ep, err := EndpointFromJSON([]byte(`{"host":"a","port":1080,"protocol":"socks5"}`))
	assert.NoError(t, err)
	assert.Equal(t, "a:1080", ep.Addr())
	assert.True(t, ep.Protocol.Valid())

	_, err = EndpointFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestProtocolValid(t *testing.T) {
	assert.True(t, ProtocolHTTP.Valid())
	assert.True(t, ProtocolSOCKS5.Valid())
	assert.False(t, Protocol("ftp").Valid())
	assert.False(t, Protocol("").Valid())
}

func TestHealthStatusUsable(t *testing.T) {
	assert.True(t, HealthUnknown.Usable())
	assert.True(t, HealthHealthy.Usable())
	assert.True(t, HealthDegraded.Usable())
	assert.False(t, HealthUnhealthy.Usable())
	assert.False(t, HealthDead.Usable())
}

func TestAffinityKey(t *testing.T) {
	assert.Equal(t, "", (*SelectionContext)(nil).AffinityKey())
	assert.Equal(t, "", (&SelectionContext{}).AffinityKey())
	assert.Equal(t, "example.com", (&SelectionContext{TargetDomain: "example.com"}).AffinityKey())
	assert.Equal(t, "s1", (&SelectionContext{SessionKey: "s1", TargetDomain: "example.com"}).AffinityKey())
}

func TestSuccessRate(t *testing.T) {
	// 无样本按 1 处理，新 endpoint 不吃亏
	assert.InDelta(t, 1.0, EndpointStats{}.SuccessRate(), 1e-9)
	assert.InDelta(t, 0.5, EndpointStats{RequestsCompleted: 9, Successes: 4}.SuccessRate(), 1e-9)
}
