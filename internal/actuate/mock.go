package actuate

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// DefaultDelay matches the latency of a real automation run closely enough
// for agent-loop testing.
const DefaultDelay = 2 * time.Second

// Sleeper blocks for d or until ctx is done. Injected so tests run
// without real waiting.
type Sleeper func(ctx context.Context, d time.Duration) error

// Mock is the stand-in automation client. It sleeps for a fixed delay and
// reports success. Unlike the hosted mock, the delay honors context
// cancellation so a dropped invocation does not strand the worker.
type Mock struct {
	delay  time.Duration
	sleep  Sleeper
	logger log.Logger
}

// Option configures a Mock.
type Option func(*Mock)

// WithSleeper replaces the real delay with the given Sleeper.
func WithSleeper(s Sleeper) Option {
	return func(m *Mock) { m.sleep = s }
}

// NewMock creates the mock automation client. A nil logger falls back to Nop.
func NewMock(delay time.Duration, logger log.Logger, opts ...Option) *Mock {
	if logger == nil {
		logger = log.Nop()
	}
	m := &Mock{
		delay:  delay,
		sleep:  wait,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ApplyPolicy simulates the long-running automation step and returns the
// success outcome the agent relays to the operator.
func (m *Mock) ApplyPolicy(ctx context.Context, resourceARN, policyName string) (*Outcome, error) {
	m.logger.Info(ctx, "initiating automation run",
		"resource_arn", resourceARN,
		"policy", policyName,
		"delay", m.delay.String(),
	)

	if err := m.sleep(ctx, m.delay); err != nil {
		return nil, fmt.Errorf("automation interrupted: %w", err)
	}

	return &Outcome{
		Status: StatusSuccess,
		Message: fmt.Sprintf(
			"Automation run complete: policy '%s' has been temporarily applied to the resource or its associated role/user (%s) for triage.",
			policyName, resourceARN,
		),
	}, nil
}

// wait is the default Sleeper.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
