package agentgw

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/costguard/internal/actuate"
	"github.com/linnemanlabs/costguard/internal/anomaly"
	"github.com/linnemanlabs/costguard/internal/anomaly/memstore"
	"github.com/linnemanlabs/costguard/internal/tools"
)

// panicTool blows up inside Execute to exercise the boundary recover.
type panicTool struct{}

func (panicTool) Name() string                { return "panic_tool" }
func (panicTool) Description() string         { return "always panics" }
func (panicTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (panicTool) Execute(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	panic("boom")
}

func lookupHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := memstore.New()
	if err != nil {
		t.Fatalf("memstore.New: %v", err)
	}
	registry := tools.NewRegistry()
	registry.Register(anomaly.NewLookup(store))
	return New(nil, registry, InvokeHooks{})
}

func triageHandler(t *testing.T) *Handler {
	t.Helper()
	mock := actuate.NewMock(2*time.Second, nil,
		actuate.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	registry := tools.NewRegistry()
	registry.Register(actuate.NewApplyPolicyTool(mock, nil, nil))
	return New(nil, registry, InvokeHooks{})
}

func decodeBody(t *testing.T, resp Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v (body=%q)", err, resp.Body)
	}
	return body
}

func TestInvoke_AnomalyFound(t *testing.T) {
	t.Parallel()

	h := lookupHandler(t)
	resp := h.Invoke(context.Background(), Request{
		ActionGroup: "CostAnomalyChecker",
		Function:    "get_anomaly_details",
		Body:        `{"anomaly_id":"DB-001"}`,
	})

	body := decodeBody(t, resp)
	details, _ := body["details"].(string)
	if details == "" {
		t.Fatalf("body = %v, want details key", body)
	}
	for _, want := range []string{
		"ResourceARN=arn:aws:dynamodb:us-west-2:123456789012:table/HighCostTableA",
		"Type=DynamoDB-Capacity",
	} {
		if !strings.Contains(details, want) {
			t.Errorf("details = %q, want substring %q", details, want)
		}
	}
}

func TestInvoke_AnomalyNotFound(t *testing.T) {
	t.Parallel()

	h := lookupHandler(t)
	resp := h.Invoke(context.Background(), Request{
		Function: "get_anomaly_details",
		Body:     `{"anomaly_id":"X-999"}`,
	})

	body := decodeBody(t, resp)
	if body["result"] != "ERROR: Anomaly not found" {
		t.Errorf("result = %v, want not-found result", body["result"])
	}
}

func TestInvoke_MissingAnomalyID(t *testing.T) {
	t.Parallel()

	h := lookupHandler(t)
	resp := h.Invoke(context.Background(), Request{
		Function: "get_anomaly_details",
		Body:     `{}`,
	})

	body := decodeBody(t, resp)
	if body["error"] != "Missing required parameter: anomaly_id" {
		t.Errorf("error = %v, want missing-parameter message", body["error"])
	}
}

func TestInvoke_TriageSuccess(t *testing.T) {
	t.Parallel()

	h := triageHandler(t)
	resp := h.Invoke(context.Background(), Request{
		ActionGroup: "TriageExecutor",
		Function:    "apply_triage_policy",
		Body:        `{"resource_arn":"arn:aws:s3:::bucket","triage_policy_name":"DenyAll"}`,
	})

	body := decodeBody(t, resp)
	if body["status"] != "SUCCESS" {
		t.Errorf("status = %v, want SUCCESS", body["status"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "arn:aws:s3:::bucket") || !strings.Contains(msg, "DenyAll") {
		t.Errorf("message = %q, want ARN and policy name", msg)
	}
}

func TestInvoke_TriageMissingParams(t *testing.T) {
	t.Parallel()

	h := triageHandler(t)
	for _, params := range []string{
		`{}`,
		`{"resource_arn":"arn:aws:s3:::bucket"}`,
		`{"triage_policy_name":"DenyAll"}`,
	} {
		resp := h.Invoke(context.Background(), Request{
			Function: "apply_triage_policy",
			Body:     params,
		})
		body := decodeBody(t, resp)
		if body["error"] != "Missing required parameters for triage." {
			t.Errorf("params %s: error = %v, want missing-parameters message", params, body["error"])
		}
	}
}

func TestInvoke_UnknownFunction(t *testing.T) {
	t.Parallel()

	for _, h := range []*Handler{lookupHandler(t), triageHandler(t)} {
		resp := h.Invoke(context.Background(), Request{
			Function: "delete_everything",
			Body:     `{}`,
		})
		body := decodeBody(t, resp)
		if body["error"] != "Unknown function: delete_everything" {
			t.Errorf("error = %v, want unknown-function message", body["error"])
		}
	}
}

func TestInvoke_MalformedBody(t *testing.T) {
	t.Parallel()

	h := lookupHandler(t)
	for _, body := range []string{"", "{not json", "42 43"} {
		resp := h.Invoke(context.Background(), Request{
			Function: "get_anomaly_details",
			Body:     body,
		})
		decoded := decodeBody(t, resp)
		if _, ok := decoded["error"]; !ok {
			t.Errorf("body %q: response = %v, want error envelope", body, decoded)
		}
	}
}

func TestInvoke_PanicRecovered(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	registry.Register(panicTool{})
	h := New(nil, registry, InvokeHooks{})

	resp := h.Invoke(context.Background(), Request{Function: "panic_tool", Body: `{}`})
	body := decodeBody(t, resp)
	if body["error"] != "boom" {
		t.Errorf("error = %v, want recovered panic value", body["error"])
	}
}

func TestInvoke_Hooks(t *testing.T) {
	t.Parallel()

	type call struct {
		function string
		outcome  string
	}
	var calls []call

	store, err := memstore.New()
	if err != nil {
		t.Fatalf("memstore.New: %v", err)
	}
	registry := tools.NewRegistry()
	registry.Register(anomaly.NewLookup(store))
	registry.Register(panicTool{})

	h := New(nil, registry, InvokeHooks{
		OnInvoke: func(function, outcome string, _ float64) {
			calls = append(calls, call{function, outcome})
		},
	})

	ctx := context.Background()
	h.Invoke(ctx, Request{Function: "get_anomaly_details", Body: `{"anomaly_id":"DB-001"}`})
	h.Invoke(ctx, Request{Function: "get_anomaly_details", Body: `{}`})
	h.Invoke(ctx, Request{Function: "nope", Body: `{}`})
	h.Invoke(ctx, Request{Function: "get_anomaly_details", Body: `{bad`})
	h.Invoke(ctx, Request{Function: "panic_tool", Body: `{}`})

	want := []call{
		{"get_anomaly_details", "success"},
		{"get_anomaly_details", "error"},
		{"nope", "unknown_function"},
		{"get_anomaly_details", "bad_request"},
		{"panic_tool", "panic"},
	}
	if len(calls) != len(want) {
		t.Fatalf("hook calls = %d, want %d", len(calls), len(want))
	}
	for i, w := range want {
		if calls[i] != w {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], w)
		}
	}
}

func TestNew_NilRegistryPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil, ...) did not panic")
		}
	}()
	New(nil, nil, InvokeHooks{})
}

func TestErrorResponse_IsValidJSON(t *testing.T) {
	t.Parallel()

	resp := errorResponse(`quotes " and \ backslashes`)
	var body map[string]string
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("error envelope is not valid JSON: %v", err)
	}
	if body["error"] != `quotes " and \ backslashes` {
		t.Errorf("error = %q, round-trip mismatch", body["error"])
	}
}
