package xhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestEngine_MiddlewareOrder(t *testing.T) {
	e := CreateServer()
	var order []string
	trace := func(name string) MiddlewareFunc {
		return func(next RequestHandler) RequestHandler {
			return func(ctx *RequestCtx) {
				order = append(order, name)
				next(ctx)
			}
		}
	}
	e.Use(trace("first"))
	e.Use(trace("second"))
	e.GET("/ping", func(ctx *RequestCtx) {
		order = append(order, "handler")
		ctx.SetStatusCode(StatusOK)
	})

	e.DoRouting()
	e.DoRouting()

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI("/ping")
	e.Server.Handler(ctx)

	assert.Equal(t, StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, []string{"first", "second", "handler"}, order, "routing twice does not reorder the chain")
}

func TestServerOption_WithTimeouts(t *testing.T) {
	o := DefaultServerOption.WithTimeouts(1000, 0)
	assert.Equal(t, int64(1000), o.ReadTimeout.Milliseconds())
	assert.Equal(t, DefaultServerOption.WriteTimeout, o.WriteTimeout)
}

func TestRouter_NotFound(t *testing.T) {
	e := CreateServer()
	e.DoRouting()

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI("/missing")
	e.Server.Handler(ctx)
	assert.Equal(t, StatusNotFound, ctx.Response.StatusCode())
}
