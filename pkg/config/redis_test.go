package config

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, url := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		client, err := InitRedis(context.Background(), url, zap.NewNop())
		require.NoError(t, err, url)
		require.NotNil(t, client)
		assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		client.Close()
	}
}

func TestInitRedis_Disabled(t *testing.T) {
	client, err := InitRedis(context.Background(), "", zap.NewNop())
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitRedis_BadURL(t *testing.T) {
	_, err := InitRedis(context.Background(), "redis://:bad:url", zap.NewNop())
	assert.Error(t, err)
}
