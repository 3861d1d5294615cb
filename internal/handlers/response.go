package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/ledgerkraft/bookkeeping/internal/services"
	xhttp "github.com/ledgerkraft/bookkeeping/pkg/http"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
)

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("encode response", "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, xhttp.StatusText(xhttp.StatusInternalServerError))
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

// writeError answers with a plain-text reason.
func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	ctx.Error(msg, status)
}

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrDuplicateData), errors.Is(err, ErrAccountBusy):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	default:
		xhttp.RequestLogger(ctx).Error("request failed", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
	}
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return id, nil
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// queryLimit returns 0 when the parameter is absent.
func queryLimit(ctx *xhttp.RequestCtx) (int, error) {
	v := query(ctx, "limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

// queryIDs reads comma separated or repeated id parameters.
func queryIDs(ctx *xhttp.RequestCtx, key string) ([]int64, error) {
	var ids []int64
	for _, raw := range ctx.QueryArgs().PeekMulti(key) {
		for _, part := range strings.Split(string(raw), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, errors.New(key + " must list positive integers")
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
