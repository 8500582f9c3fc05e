package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/config"
)

func TestOpenStores_MemoryWithoutDatabaseURL(t *testing.T) {
	st, err := OpenStores(context.Background(), config.DatabaseConfig{})
	require.NoError(t, err)
	assert.Nil(t, st.DB)
	assert.NotNil(t, st.Memory)
	assert.NoError(t, st.Close())
}

func TestOpenRedis(t *testing.T) {
	client, err := OpenRedis(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = OpenRedis(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	client.Close()
}

func TestNewSender(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewSender(config.GatewayConfig{Type: "console"}, reg)
	require.NoError(t, err)

	_, err = NewSender(config.GatewayConfig{Type: "whatsapp"}, prometheus.NewRegistry())
	assert.Error(t, err, "whatsapp needs a base url")

	_, err = NewSender(config.GatewayConfig{Type: "carrier-pigeon"}, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestNewWorkers(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	st, err := OpenStores(ctx, cfg.Database)
	require.NoError(t, err)
	svc := NewServices(st, cfg.Messaging)

	w, err := NewWorkers(ctx, cfg, st, svc, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NotEmpty(t, w.Dispatcher.WorkerID())
	assert.NoError(t, w.Dispatcher.RunOnce(ctx))
	assert.Zero(t, w.Recovery.RecoverOnce(ctx))

	cfg.RateLimit.Enabled = true
	_, err = NewWorkers(ctx, cfg, st, svc, nil, prometheus.NewRegistry())
	assert.Error(t, err, "rate limiting requires redis")
}
