package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sightline-ai/sightline/api/schemas"
)

func setupRouter(t *testing.T) (*Router, *stubLLM, *stubLLM) {
	t.Helper()
	fast := &stubLLM{response: "fast reply"}
	powerful := &stubLLM{response: "powerful reply"}
	router, err := NewRouter(zaptest.NewLogger(t), fast, powerful)
	require.NoError(t, err)
	return router, fast, powerful
}

func TestNewRouter_RequiresBothClients(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewRouter(logger, nil, &stubLLM{})
	require.Error(t, err)

	_, err = NewRouter(logger, &stubLLM{}, nil)
	require.Error(t, err)
}

func TestRouter_RoutesByTier(t *testing.T) {
	router, _, _ := setupRouter(t)

	out, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	require.NoError(t, err)
	assert.Equal(t, "fast reply", out)

	out, err = router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierPowerful})
	require.NoError(t, err)
	assert.Equal(t, "powerful reply", out)
}

func TestRouter_EmptyTierDefaultsToPowerful(t *testing.T) {
	router, _, _ := setupRouter(t)

	out, err := router.Generate(context.Background(), schemas.GenerationRequest{})

	require.NoError(t, err)
	assert.Equal(t, "powerful reply", out)
}

func TestRouter_UnknownTier(t *testing.T) {
	router, _, _ := setupRouter(t)

	_, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: "mythical"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM client configured")
}
