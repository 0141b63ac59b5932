package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/costguard/internal/tools"
)

var tracer = otel.Tracer("github.com/linnemanlabs/costguard/internal/agent")

const (
	MaxToolRounds  = 8
	MaxTokens      = 30000
	ResponseTokens = 2048
)

// Status tracks how a run ended.
type Status string

const (
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// RunResult is the outcome of one agent run.
type RunResult struct {
	Status     Status
	Analysis   string
	TokensUsed int
	ToolCalls  int
	Duration   float64
}

// Engine orchestrates the conversation between the LLM provider and the
// registered action-group tools.
type Engine struct {
	provider Provider
	registry *tools.Registry
	logger   log.Logger
}

// NewEngine creates an engine with the given dependencies. A nil logger
// falls back to Nop.
func NewEngine(provider Provider, registry *tools.Registry, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		provider: provider,
		registry: registry,
		logger:   logger,
	}
}

// Run drives the tool-use loop for a single task until the model ends its
// turn or a budget runs out.
func (e *Engine) Run(ctx context.Context, task string) *RunResult {
	start := time.Now()
	result := &RunResult{Status: StatusComplete}

	messages := []Message{
		{Role: "user", Content: []ContentBlock{
			{Type: "text", Text: task},
		}},
	}

	chatSeq := 0
	for {
		if result.ToolCalls >= MaxToolRounds {
			e.logger.Warn(ctx, "run hit tool call limit", "limit", MaxToolRounds)
			result.Analysis = "Run terminated: tool call budget exhausted"
			break
		}
		if result.TokensUsed >= MaxTokens {
			e.logger.Warn(ctx, "run hit token limit", "limit", MaxTokens)
			result.Analysis = "Run terminated: token budget exhausted"
			break
		}

		callCtx, span := tracer.Start(ctx, "llm.call", trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "llm.call"),
			attribute.Int("costguard.chat.seq", chatSeq),
		))
		chatSeq++

		resp, err := e.provider.Send(callCtx, &LLMRequest{
			MaxTokens: ResponseTokens,
			System:    systemPrompt,
			Messages:  messages,
			Tools:     e.registry.ToToolDefs(),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "llm call failed")
			span.End()
			e.logger.Error(ctx, err, "llm call failed")
			result.Status = StatusFailed
			result.Analysis = fmt.Sprintf("LLM error: %v", err)
			break
		}

		span.SetAttributes(
			attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
			attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
			attribute.String("gen_ai.response.finish_reason", string(resp.StopReason)),
		)
		span.End()

		result.TokensUsed += resp.Usage.InputTokens + resp.Usage.OutputTokens

		e.logger.Info(ctx, "llm response",
			"stop_reason", resp.StopReason,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"total_tokens", result.TokensUsed,
		)

		messages = append(messages, Message{
			Role:    "assistant",
			Content: resp.Content,
		})

		if resp.StopReason == StopEnd {
			for _, block := range resp.Content {
				if block.Type == "text" {
					result.Analysis = block.Text
				}
			}
			break
		}

		if resp.StopReason == StopToolUse {
			messages = append(messages, Message{
				Role:    "user",
				Content: e.executeTools(ctx, resp.Content, result),
			})
		}
	}

	result.Duration = time.Since(start).Seconds()

	e.logger.Info(ctx, "run complete",
		"status", result.Status,
		"duration", result.Duration,
		"tokens", result.TokensUsed,
		"tool_calls", result.ToolCalls,
	)
	return result
}

func (e *Engine) executeTools(ctx context.Context, content []ContentBlock, result *RunResult) []ContentBlock {
	var toolResults []ContentBlock

	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}

		result.ToolCalls++
		e.logger.Info(ctx, "executing tool",
			"tool", block.Name,
			"call_number", result.ToolCalls,
		)

		execCtx, span := tracer.Start(ctx, "tool.execute", trace.WithAttributes(
			attribute.String("costguard.tool.name", block.Name),
			attribute.Int("costguard.tool.call_number", result.ToolCalls),
		))

		tool, ok := e.registry.Get(block.Name)
		if !ok {
			span.SetStatus(codes.Error, "unknown tool")
			span.End()
			toolResults = append(toolResults, ContentBlock{
				Type:      "tool_result",
				ToolUseID: block.ID,
				Content:   fmt.Sprintf("unknown tool: %s", block.Name),
				IsError:   true,
			})
			continue
		}

		output, err := tool.Execute(execCtx, block.Input)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "tool execution failed")
			span.End()
			e.logger.Error(ctx, err, "tool execution failed", "tool", block.Name)
			toolResults = append(toolResults, ContentBlock{
				Type:      "tool_result",
				ToolUseID: block.ID,
				Content:   fmt.Sprintf("tool error: %v", err),
				IsError:   true,
			})
			continue
		}
		span.End()

		toolResults = append(toolResults, ContentBlock{
			Type:      "tool_result",
			ToolUseID: block.ID,
			Content:   string(output),
		})
	}

	return toolResults
}

const systemPrompt = `You are CostGuard, a FinOps triage agent. You diagnose cloud cost
anomalies and apply temporary mitigation policies.

Workflow:
1. Look the anomaly up with get_anomaly_details to identify the affected
   resource and anomaly type.
2. Decide on a mitigation policy for that anomaly type.
3. Apply it with apply_triage_policy.
4. Summarize what was found and what was applied, with the cost impact.

Be concise and operational. This goes to a FinOps engineer's queue.`
