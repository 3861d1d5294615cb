package xhttp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newCtx(path string) *RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI(path)
	return ctx
}

func TestAuthenticatedUserMiddleware(t *testing.T) {
	var seen string
	h := AuthenticatedUserMiddleware(func(ctx *RequestCtx) {
		seen, _ = AuthenticatedUser(ctx)
		ctx.SetStatusCode(StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		ctx := newCtx("/api/v1/accounts")
		h(ctx)
		assert.Equal(t, StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("header present", func(t *testing.T) {
		ctx := newCtx("/api/v1/accounts")
		ctx.Request.Header.Set(HeaderAuthenticatedUser, " alice ")
		h(ctx)
		assert.Equal(t, StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, "alice", seen)
	})

	t.Run("health is public", func(t *testing.T) {
		ctx := newCtx("/api/v1/health")
		h(ctx)
		assert.Equal(t, StatusOK, ctx.Response.StatusCode())
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	h := RequestIDMiddleware(func(ctx *RequestCtx) {})

	ctx := newCtx("/x")
	h(ctx)
	generated := string(ctx.Response.Header.Peek(HeaderRequestID))
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, requestID(ctx))

	ctx = newCtx("/x")
	ctx.Request.Header.Set(HeaderRequestID, "abc")
	h(ctx)
	assert.Equal(t, "abc", string(ctx.Response.Header.Peek(HeaderRequestID)))
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(ctx *RequestCtx) { panic("boom") })
	ctx := newCtx("/x")
	assert.NotPanics(t, func() { h(ctx) })
	assert.Equal(t, StatusInternalServerError, ctx.Response.StatusCode())
}

// TimeoutWithCodeHandler needs a running server, so these go over an
// in-memory listener.
func serveInMemory(t *testing.T, h RequestHandler) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	s := &fasthttp.Server{Handler: h}
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown() })
	return &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
}

func TestTimeoutMiddleware_ExpiresRequestContext(t *testing.T) {
	seen := make(chan error, 1)
	h := TimeoutMiddleware(50 * time.Millisecond)(func(ctx *RequestCtx) {
		rc := RequestContext(ctx)
		select {
		case <-rc.Done():
			seen <- rc.Err()
		case <-time.After(2 * time.Second):
			seen <- nil
		}
	})
	client := serveInMemory(t, h)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI("http://bookkeeping.test/slow")

	require.NoError(t, client.Do(req, resp))
	assert.Equal(t, StatusRequestTimeout, resp.StatusCode())

	select {
	case err := <-seen:
		assert.ErrorIs(t, err, context.DeadlineExceeded, "handler context must end with the 408")
	case <-time.After(3 * time.Second):
		t.Fatal("handler never returned")
	}
}

func TestRequestContext_WithoutTimeout(t *testing.T) {
	ctx := newCtx("/x")
	assert.Same(t, ctx, RequestContext(ctx))
}
