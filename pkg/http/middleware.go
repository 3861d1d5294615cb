package xhttp

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/valyala/fasthttp"
)

const slowThreshold = 500 * time.Millisecond

const (
	HeaderRequestID         = "X-Request-Id"
	HeaderAuthenticatedUser = "X-Authenticated-User"

	userValueRequestID = "request_id"
	userValueUser      = "authenticated_user"
)

type requestContextKey struct{}

var skipPaths = []string{"/health", "/metrics"}

type MiddlewareFunc func(next RequestHandler) RequestHandler
type RequestCtx = fasthttp.RequestCtx
type RequestHandler = fasthttp.RequestHandler

// TimeoutMiddleware answers 408 once timeout passes. fasthttp leaves the
// handler running, so the context from RequestContext expires at the same
// moment and work bound to it stops there.
func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		bounded := func(ctx *RequestCtx) {
			c, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			ctx.SetUserValue(requestContextKey{}, c)
			next(ctx)
		}
		return fasthttp.TimeoutWithCodeHandler(bounded, timeout, StatusText(StatusRequestTimeout), StatusRequestTimeout)
	}
}

// RequestContext is the context handlers hand to blocking calls. Without
// TimeoutMiddleware in the chain it is the request itself.
func RequestContext(ctx *RequestCtx) context.Context {
	if c, ok := ctx.UserValue(requestContextKey{}).(context.Context); ok {
		return c
	}
	return ctx
}

func CompressMiddleware(level int) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return fasthttp.CompressHandlerBrotliLevel(next, level, level)
	}
}

func RecoverMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		defer func() {
			if err := recover(); err != nil {
				ctx.Error(StatusText(StatusInternalServerError), StatusInternalServerError)
				logger.Error("[xhttp] panic recovered", "error", err, "path", string(ctx.Path()))
			}
		}()
		next(ctx)
	}
}

// RequestIDMiddleware keeps the caller's request id or assigns a new one,
// and echoes it on the response.
func RequestIDMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		rid := string(ctx.Request.Header.Peek(HeaderRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx.SetUserValue(userValueRequestID, rid)
		ctx.Response.Header.Set(HeaderRequestID, rid)
		next(ctx)
	}
}

// AuthenticatedUserMiddleware trusts the user name set by the upstream auth
// layer. Requests without it are answered with 401.
func AuthenticatedUserMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		if shouldSkip(string(ctx.Path())) {
			next(ctx)
			return
		}
		user := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderAuthenticatedUser)))
		if user == "" {
			ctx.Error(StatusText(StatusUnauthorized), StatusUnauthorized)
			return
		}
		ctx.SetUserValue(userValueUser, user)
		next(ctx)
	}
}

// AuthenticatedUser returns the user stored by AuthenticatedUserMiddleware.
func AuthenticatedUser(ctx *RequestCtx) (string, bool) {
	user, ok := ctx.UserValue(userValueUser).(string)
	return user, ok && user != ""
}

func RequestLoggerMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		if shouldSkip(path) {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		latency := time.Since(start)
		status := ctx.Response.StatusCode()
		fields := []any{
			"status", status,
			"method", string(ctx.Method()),
			"path", path,
			"latency", latency.String(),
			"bytes_in", len(ctx.PostBody()),
			"bytes_out", len(ctx.Response.Body()),
			"ip", ctx.RemoteIP().String(),
		}

		lg := RequestLogger(ctx)

		// choose level
		switch {
		case status >= 500:
			lg.Error("http_request", fields...)
		case status >= 400 || latency > slowThreshold:
			lg.Warn("http_request", fields...)
		default:
			lg.Info("http_request", fields...)
		}
	}
}

// RequestLogger returns the process logger scoped to this request's id and user.
func RequestLogger(ctx *RequestCtx) *logger.ZapLogger {
	user, _ := AuthenticatedUser(ctx)
	return logger.GetLogger().With("request_id", requestID(ctx), "user", user)
}

func shouldSkip(p string) bool {
	for _, sp := range skipPaths {
		if strings.HasSuffix(p, sp) {
			return true
		}
	}
	return false
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if v, ok := ctx.UserValue(userValueRequestID).(string); ok {
		return v
	}
	return string(ctx.Request.Header.Peek(HeaderRequestID))
}
