package agentgw

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/costguard/internal/tools"
)

// Handler is the boundary adapter for one action-group target. It owns
// envelope decoding, function dispatch, and the catch-all mapping of
// failures to the error envelope.
type Handler struct {
	logger   log.Logger
	registry *tools.Registry
	hooks    InvokeHooks
}

// New creates a handler over the given registry. A nil logger falls back
// to Nop.
func New(logger log.Logger, registry *tools.Registry, hooks InvokeHooks) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	if registry == nil {
		panic(xerrors.New("tool registry is required"))
	}
	return &Handler{
		logger:   logger,
		registry: registry,
		hooks:    hooks,
	}
}

// Invoke processes one envelope. It always returns a well-formed Response;
// panics and errors from tools are converted, never propagated.
func (h *Handler) Invoke(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	id := ulid.Make().String()

	L := h.logger.With(
		"invocation_id", id,
		"action_group", req.ActionGroup,
		"function", req.Function,
	)

	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			L.Error(ctx, fmt.Errorf("panic: %v", r), "invocation panicked")
			resp = errorResponse(fmt.Sprintf("%v", r))
		}
		if h.hooks.OnInvoke != nil {
			h.hooks.OnInvoke(req.Function, outcome, time.Since(start).Seconds())
		}
		L.Info(ctx, "invocation complete",
			"outcome", outcome,
			"duration", time.Since(start).Seconds(),
		)
	}()

	// The parameter payload is a JSON-encoded string inside the envelope.
	// Decode it before dispatch so a malformed body fails the same way
	// regardless of function name, matching the hosted contract.
	var params json.RawMessage
	if err := json.Unmarshal([]byte(req.Body), &params); err != nil {
		outcome = "bad_request"
		L.Warn(ctx, "malformed request body", "error", err)
		return errorResponse(fmt.Sprintf("parse request body: %v", err))
	}

	tool, ok := h.registry.Get(req.Function)
	if !ok {
		outcome = "unknown_function"
		L.Warn(ctx, "unknown function")
		return errorResponse("Unknown function: " + req.Function)
	}

	out, err := tool.Execute(ctx, params)
	if err != nil {
		outcome = "error"
		L.Warn(ctx, "tool returned error", "error", err)
		return errorResponse(err.Error())
	}

	return Response{Body: string(out)}
}
