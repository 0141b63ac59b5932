// Triage-action is the Lambda entrypoint for the TriageAction action group.
// It applies temporary mitigation policies to anomalous resources on behalf
// of the Bedrock triage agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/costguard/internal/actuate"
	"github.com/linnemanlabs/costguard/internal/agentgw"
	"github.com/linnemanlabs/costguard/internal/notify/slack"
	"github.com/linnemanlabs/costguard/internal/tools"
)

const appName = "costguard"
const component = "triage-action"

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
	var (
		delaySeconds    int
		slackWebhookURL string
	)
	flag.IntVar(&delaySeconds, "triage-delay-seconds", 2, "simulated policy application delay in seconds (0..300)")
	flag.StringVar(&slackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for policy audit messages")
	flag.Parse()

	cfg.FillFromEnv(flag.CommandLine, "COSTGUARD_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := logCfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if delaySeconds < 0 || delaySeconds > 300 {
		return fmt.Errorf("invalid TRIAGE_DELAY_SECONDS %d (must be 0..300)", delaySeconds)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx := log.WithContext(context.Background(), L)

	var notifier actuate.Notifier
	if slackWebhookURL != "" {
		notifier = slack.New(slackWebhookURL, L)
		L.Info(ctx, "notifier enabled", "type", "slack")
	}

	applier := actuate.NewMock(time.Duration(delaySeconds)*time.Second, L)
	applyTool := actuate.NewApplyPolicyTool(applier, L, notifier)

	registry := tools.NewRegistry()
	registry.Register(applyTool)

	handler := agentgw.New(L, registry, agentgw.InvokeHooks{})

	L.Info(ctx, "starting lambda handler",
		"version", vi.Version,
		"commit", vi.Commit,
		"tool", applyTool.Name(),
		"delay_seconds", delaySeconds,
	)

	lambda.Start(func(ctx context.Context, req agentgw.Request) (agentgw.Response, error) {
		return handler.Invoke(log.WithContext(ctx, L), req), nil
	})
	return nil
}
