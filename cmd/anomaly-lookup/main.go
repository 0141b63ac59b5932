// Anomaly-lookup is the Lambda entrypoint for the AnomalyLookup action group.
// It resolves anomaly IDs against the cost anomaly database on behalf of the
// Bedrock triage agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/costguard/internal/agentgw"
	"github.com/linnemanlabs/costguard/internal/anomaly"
	"github.com/linnemanlabs/costguard/internal/anomaly/memstore"
	"github.com/linnemanlabs/costguard/internal/tools"
)

const appName = "costguard"
const component = "anomaly-lookup"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var logCfg log.Config
	logCfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg.FillFromEnv(flag.CommandLine, "COSTGUARD_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := logCfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx := log.WithContext(context.Background(), L)

	store, err := memstore.New()
	if err != nil {
		return fmt.Errorf("memstore init: %w", err)
	}

	registry := tools.NewRegistry()
	lookup := anomaly.NewLookup(store)
	registry.Register(lookup)

	handler := agentgw.New(L, registry, agentgw.InvokeHooks{})

	L.Info(ctx, "starting lambda handler",
		"version", vi.Version,
		"commit", vi.Commit,
		"tool", lookup.Name(),
	)

	lambda.Start(func(ctx context.Context, req agentgw.Request) (agentgw.Response, error) {
		return handler.Invoke(log.WithContext(ctx, L), req), nil
	})
	return nil
}
