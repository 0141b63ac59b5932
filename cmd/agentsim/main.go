// Agentsim runs the triage agent loop locally against the in-memory anomaly
// store, exercising the same tools the Bedrock agent invokes in production.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/costguard/internal/actuate"
	"github.com/linnemanlabs/costguard/internal/agent"
	"github.com/linnemanlabs/costguard/internal/anomaly"
	"github.com/linnemanlabs/costguard/internal/anomaly/memstore"
	cc "github.com/linnemanlabs/costguard/internal/cfg"
	"github.com/linnemanlabs/costguard/internal/llm/claude"
	"github.com/linnemanlabs/costguard/internal/tools"
)

const appName = "costguard"
const component = "agentsim"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var (
		appCfg cc.Config
		logCfg log.Config
	)
	appCfg.RegisterFlags(flag.CommandLine)
	logCfg.RegisterFlags(flag.CommandLine)

	var anomalyID string
	flag.StringVar(&anomalyID, "anomaly-id", "", "anomaly to triage (required)")
	flag.Parse()

	cfg.FillFromEnv(flag.CommandLine, "COSTGUARD_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(
		appCfg.Validate(),
		logCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if appCfg.ClaudeAPIKey == "" {
		return errors.New("CLAUDE_API_KEY is required")
	}
	if anomalyID == "" {
		return errors.New("anomaly-id is required")
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	store, err := memstore.New()
	if err != nil {
		return fmt.Errorf("memstore init: %w", err)
	}

	applier := actuate.NewMock(time.Duration(appCfg.TriageDelaySeconds)*time.Second, L)

	registry := tools.NewRegistry()
	registry.Register(anomaly.NewLookup(store))
	registry.Register(actuate.NewApplyPolicyTool(applier, L, nil))

	provider := claude.New(appCfg.ClaudeAPIKey, appCfg.ClaudeModel)
	engine := agent.NewEngine(provider, registry, L)

	L.Info(ctx, "starting agent run",
		"version", vi.Version,
		"model", appCfg.ClaudeModel,
		"anomaly_id", anomalyID,
	)

	task := fmt.Sprintf("Investigate cost anomaly %s and apply a suitable temporary mitigation policy.", anomalyID)
	result := engine.Run(ctx, task)

	L.Info(ctx, "agent run finished",
		"status", result.Status,
		"tokens", result.TokensUsed,
		"tool_calls", result.ToolCalls,
		"duration", result.Duration,
	)

	fmt.Println(result.Analysis)
	if result.Status != agent.StatusComplete {
		return fmt.Errorf("agent run %s", result.Status)
	}
	return nil
}
