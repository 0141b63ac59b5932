package actuate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// ErrMissingTriageParams is returned verbatim in the error envelope when
// either required parameter is absent or empty. The agent-side schema
// matches on this exact text, so it must not change.
var ErrMissingTriageParams = errors.New("Missing required parameters for triage.")

// ApplyPolicyTool implements the apply_triage_policy action-group function.
type ApplyPolicyTool struct {
	applier  Applier
	notifier Notifier
	logger   log.Logger
}

// NewApplyPolicyTool creates the tool. notifier may be nil; a nil logger
// falls back to Nop.
func NewApplyPolicyTool(applier Applier, logger log.Logger, notifier Notifier) *ApplyPolicyTool {
	if logger == nil {
		logger = log.Nop()
	}
	return &ApplyPolicyTool{
		applier:  applier,
		notifier: notifier,
		logger:   logger,
	}
}

func (t *ApplyPolicyTool) Name() string { return "apply_triage_policy" }

func (t *ApplyPolicyTool) Description() string {
	return `Apply a named triage policy to a cloud resource via the automation SDK.
Use this after diagnosing an anomaly to temporarily restrict the offending
resource. The call blocks until the automation run finishes.`
}

func (t *ApplyPolicyTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "resource_arn": {
                "type": "string",
                "description": "ARN of the resource to restrict"
            },
            "triage_policy_name": {
                "type": "string",
                "description": "Name of the mitigation policy to apply, e.g. DenyAll"
            }
        },
        "required": ["resource_arn", "triage_policy_name"]
    }`)
}

// Execute validates the parameters, runs the automation client, and returns
// the status/message body. A configured notifier gets a best-effort audit
// event; notification failures never fail the invocation.
func (t *ApplyPolicyTool) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input struct {
		ResourceARN string `json:"resource_arn"`
		PolicyName  string `json:"triage_policy_name"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if input.ResourceARN == "" || input.PolicyName == "" {
		return nil, ErrMissingTriageParams
	}

	start := time.Now()
	outcome, err := t.applier.ApplyPolicy(ctx, input.ResourceARN, input.PolicyName)
	if err != nil {
		return nil, err
	}

	if t.notifier != nil {
		ev := &PolicyEvent{
			ResourceARN: input.ResourceARN,
			PolicyName:  input.PolicyName,
			Status:      outcome.Status,
			DurationS:   time.Since(start).Seconds(),
		}
		if err := t.notifier.PolicyApplied(ctx, ev); err != nil {
			t.logger.Warn(ctx, "policy audit notification failed",
				"resource_arn", input.ResourceARN,
				"policy", input.PolicyName,
				"error", err,
			)
		}
	}

	return json.Marshal(outcome)
}
