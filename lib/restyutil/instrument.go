package restyutil

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

type instrumentCtx struct {
	output InstrumentOutput
	// keeps dumps of separate runs in the same directory apart
	runId     string
	idcounter *uint64
}

type messageIdKey struct{}

// InstrumentClient dumps every exchange made by client to output while
// debug logging is enabled. a nil output makes this a no-op.
func InstrumentClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}

	runId, err := random.String(6)
	if err != nil {
		slog.Warn("failed to generate instrumentation run id", "err", err)
		runId = "run"
	}

	var idcounter uint64
	i := instrumentCtx{output: output, runId: runId, idcounter: &idcounter}
	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

func (i instrumentCtx) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx := req.Context()
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return nil
	}

	messageId := fmt.Sprintf("%s-%d", i.runId, atomic.AddUint64(i.idcounter, 1))
	slog.DebugContext(
		ctx, "start request",
		"method", req.Method,
		"url", req.URL,
		"message_id", messageId,
	)
	req.SetContext(context.WithValue(ctx, messageIdKey{}, messageId))
	return nil
}

func (i instrumentCtx) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	messageId, ok := ctx.Value(messageIdKey{}).(string)
	if !ok {
		return nil
	}

	i.output.Write(messageId, formatHttpMessage(res))
	slog.DebugContext(
		ctx, "request finished",
		"method", res.Request.Method,
		"url", res.Request.URL,
		"status", res.StatusCode(),
		"message_id", messageId,
	)
	return nil
}

func (i instrumentCtx) onError(req *resty.Request, err error) {
	ctx := req.Context()
	messageId, _ := ctx.Value(messageIdKey{}).(string)
	slog.ErrorContext(
		ctx, "request failed",
		"method", req.Method,
		"url", req.URL,
		"err", err,
		"message_id", messageId,
	)
}
