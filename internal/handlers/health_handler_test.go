package handlers

import (
	"context"
	"errors"
	"testing"

	xhttp "github.com/ledgerkraft/bookkeeping/pkg/http"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })

	t.Run("all dependencies up", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthChecker{"db": ok, "redis": ok})
		ctx := setupTestContext("GET", "/health", "", nil)
		h.GetHealth(ctx)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, "success", string(ctx.Response.Body()))
	})

	t.Run("dependency down", func(t *testing.T) {
		down := pingFunc(func(context.Context) error { return errors.New("connection refused") })
		h := NewHealthHandler(map[string]HealthChecker{"db": ok, "redis": down})
		ctx := setupTestContext("GET", "/health", "", nil)
		h.GetHealth(ctx)

		assert.Equal(t, xhttp.StatusServiceUnavailable, ctx.Response.StatusCode())
		assert.Equal(t, "redis unavailable", string(ctx.Response.Body()))
	})
}
