package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/costguard/internal/tools"
)

// mockProvider returns preconfigured responses in sequence.
type mockProvider struct {
	mu        sync.Mutex
	responses []*LLMResponse
	errs      []error
	callIdx   int

	lastReq *LLMRequest
}

func (m *mockProvider) Send(_ context.Context, req *LLMRequest) (*LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastReq = req
	idx := m.callIdx
	m.callIdx++

	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	// fallback: end turn
	return &LLMResponse{
		Content:    []ContentBlock{{Type: "text", Text: "fallback"}},
		StopReason: StopEnd,
		Usage:      Usage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

// mockTool returns preconfigured Execute results.
type mockTool struct {
	name   string
	output json.RawMessage
	err    error

	gotInput json.RawMessage
}

func (m *mockTool) Name() string                { return m.name }
func (m *mockTool) Description() string         { return "mock tool" }
func (m *mockTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (m *mockTool) Execute(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	m.gotInput = input
	return m.output, m.err
}

func TestRun_SingleTurn(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		responses: []*LLMResponse{{
			Content:    []ContentBlock{{Type: "text", Text: "no anomalies to triage"}},
			StopReason: StopEnd,
			Usage:      Usage{InputTokens: 100, OutputTokens: 20},
		}},
	}
	engine := NewEngine(provider, tools.NewRegistry(), nil)

	result := engine.Run(context.Background(), "investigate anomaly DB-001")

	if result.Status != StatusComplete {
		t.Errorf("Status = %q, want complete", result.Status)
	}
	if result.Analysis != "no anomalies to triage" {
		t.Errorf("Analysis = %q", result.Analysis)
	}
	if result.TokensUsed != 120 {
		t.Errorf("TokensUsed = %d, want 120", result.TokensUsed)
	}
	if result.ToolCalls != 0 {
		t.Errorf("ToolCalls = %d, want 0", result.ToolCalls)
	}
}

func TestRun_ToolRound(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	tool := &mockTool{
		name:   "get_anomaly_details",
		output: json.RawMessage(`{"details":"Anomaly found: ResourceARN=arn:x, Type=T, Impact=1"}`),
	}
	registry.Register(tool)

	provider := &mockProvider{
		responses: []*LLMResponse{
			{
				Content: []ContentBlock{{
					Type:  "tool_use",
					ID:    "tu-1",
					Name:  "get_anomaly_details",
					Input: json.RawMessage(`{"anomaly_id":"DB-001"}`),
				}},
				StopReason: StopToolUse,
				Usage:      Usage{InputTokens: 50, OutputTokens: 10},
			},
			{
				Content:    []ContentBlock{{Type: "text", Text: "triage done"}},
				StopReason: StopEnd,
				Usage:      Usage{InputTokens: 80, OutputTokens: 30},
			},
		},
	}
	engine := NewEngine(provider, registry, nil)

	result := engine.Run(context.Background(), "investigate anomaly DB-001")

	if result.Status != StatusComplete {
		t.Errorf("Status = %q, want complete", result.Status)
	}
	if result.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", result.ToolCalls)
	}
	if string(tool.gotInput) != `{"anomaly_id":"DB-001"}` {
		t.Errorf("tool input = %s", tool.gotInput)
	}
	if result.Analysis != "triage done" {
		t.Errorf("Analysis = %q", result.Analysis)
	}

	// last request must carry the tool result back
	found := false
	for _, m := range provider.lastReq.Messages {
		for _, b := range m.Content {
			if b.Type == "tool_result" && b.ToolUseID == "tu-1" {
				found = true
				if !strings.Contains(b.Content, "Anomaly found") {
					t.Errorf("tool_result content = %q", b.Content)
				}
			}
		}
	}
	if !found {
		t.Error("no tool_result block sent back to provider")
	}
}

func TestRun_UnknownTool(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		responses: []*LLMResponse{
			{
				Content: []ContentBlock{{
					Type: "tool_use", ID: "tu-1", Name: "no_such_tool",
					Input: json.RawMessage(`{}`),
				}},
				StopReason: StopToolUse,
				Usage:      Usage{InputTokens: 10, OutputTokens: 5},
			},
			{
				Content:    []ContentBlock{{Type: "text", Text: "done"}},
				StopReason: StopEnd,
			},
		},
	}
	engine := NewEngine(provider, tools.NewRegistry(), nil)

	result := engine.Run(context.Background(), "task")

	if result.Status != StatusComplete {
		t.Errorf("Status = %q, want complete", result.Status)
	}

	var errBlock *ContentBlock
	for _, m := range provider.lastReq.Messages {
		for i, b := range m.Content {
			if b.Type == "tool_result" {
				errBlock = &m.Content[i]
			}
		}
	}
	if errBlock == nil {
		t.Fatal("no tool_result sent back")
	}
	if !errBlock.IsError || !strings.Contains(errBlock.Content, "unknown tool") {
		t.Errorf("tool_result = %+v, want is_error with unknown tool message", errBlock)
	}
}

func TestRun_ToolError(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	registry.Register(&mockTool{name: "apply_triage_policy", err: errors.New("Missing required parameters for triage.")})

	provider := &mockProvider{
		responses: []*LLMResponse{
			{
				Content: []ContentBlock{{
					Type: "tool_use", ID: "tu-1", Name: "apply_triage_policy",
					Input: json.RawMessage(`{}`),
				}},
				StopReason: StopToolUse,
			},
			{
				Content:    []ContentBlock{{Type: "text", Text: "could not apply"}},
				StopReason: StopEnd,
			},
		},
	}
	engine := NewEngine(provider, registry, nil)

	result := engine.Run(context.Background(), "task")

	if result.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", result.ToolCalls)
	}

	found := false
	for _, m := range provider.lastReq.Messages {
		for _, b := range m.Content {
			if b.Type == "tool_result" && b.IsError {
				found = true
				if !strings.Contains(b.Content, "Missing required parameters") {
					t.Errorf("tool_result content = %q", b.Content)
				}
			}
		}
	}
	if !found {
		t.Error("tool error not reported back to provider")
	}
}

func TestRun_LLMError(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{errs: []error{errors.New("api down")}}
	engine := NewEngine(provider, tools.NewRegistry(), nil)

	result := engine.Run(context.Background(), "task")

	if result.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}
	if !strings.Contains(result.Analysis, "api down") {
		t.Errorf("Analysis = %q, want LLM error", result.Analysis)
	}
}

func TestRun_CreatesSpans(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	registry := tools.NewRegistry()
	registry.Register(&mockTool{
		name:   "get_anomaly_details",
		output: json.RawMessage(`{"details":"ok"}`),
	})

	provider := &mockProvider{
		responses: []*LLMResponse{
			{
				Content: []ContentBlock{{
					Type: "tool_use", ID: "tu-1", Name: "get_anomaly_details",
					Input: json.RawMessage(`{"anomaly_id":"DB-001"}`),
				}},
				StopReason: StopToolUse,
				Usage:      Usage{InputTokens: 100, OutputTokens: 50},
			},
			{
				Content:    []ContentBlock{{Type: "text", Text: "done"}},
				StopReason: StopEnd,
				Usage:      Usage{InputTokens: 200, OutputTokens: 80},
			},
		},
	}
	engine := NewEngine(provider, registry, nil)

	result := engine.Run(context.Background(), "task")
	if result.Status != StatusComplete {
		t.Fatalf("Status = %q, want complete", result.Status)
	}

	counts := make(map[string]int)
	var toolName string
	for _, s := range exporter.GetSpans() {
		counts[s.Name]++
		if s.Name != "tool.execute" {
			continue
		}
		for _, a := range s.Attributes {
			if string(a.Key) == "costguard.tool.name" {
				toolName = a.Value.AsString()
			}
		}
	}

	if counts["llm.call"] != 2 {
		t.Errorf("llm.call spans = %d, want 2", counts["llm.call"])
	}
	if counts["tool.execute"] != 1 {
		t.Errorf("tool.execute spans = %d, want 1", counts["tool.execute"])
	}
	if toolName != "get_anomaly_details" {
		t.Errorf("tool span name attribute = %q", toolName)
	}
}

func TestRun_ToolBudget(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	registry.Register(&mockTool{name: "get_anomaly_details", output: json.RawMessage(`{}`)})

	// provider that always asks for another tool call
	loop := &LLMResponse{
		Content: []ContentBlock{{
			Type: "tool_use", ID: "tu-n", Name: "get_anomaly_details",
			Input: json.RawMessage(`{}`),
		}},
		StopReason: StopToolUse,
		Usage:      Usage{InputTokens: 1, OutputTokens: 1},
	}
	responses := make([]*LLMResponse, MaxToolRounds+2)
	for i := range responses {
		responses[i] = loop
	}
	engine := NewEngine(&mockProvider{responses: responses}, registry, nil)

	result := engine.Run(context.Background(), "task")

	if result.ToolCalls != MaxToolRounds {
		t.Errorf("ToolCalls = %d, want budget %d", result.ToolCalls, MaxToolRounds)
	}
	if !strings.Contains(result.Analysis, "budget exhausted") {
		t.Errorf("Analysis = %q, want budget message", result.Analysis)
	}
}
