// Package actuate simulates the proprietary automation SDK that applies a
// triage policy to a cloud resource through a non-API console interface.
// The real SDK is an external collaborator; everything here is a stand-in
// with the same call shape.
package actuate

import "context"

// StatusSuccess is the only terminal status the mock models. Failures
// surface as errors, not statuses.
const StatusSuccess = "SUCCESS"

// Outcome is the result of an automation run.
type Outcome struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Applier applies a named triage policy to a cloud resource.
type Applier interface {
	ApplyPolicy(ctx context.Context, resourceARN, policyName string) (*Outcome, error)
}

// PolicyEvent describes an applied policy for audit notification.
type PolicyEvent struct {
	ResourceARN string
	PolicyName  string
	Status      string
	DurationS   float64
}

// Notifier receives an audit event after a policy has been applied.
type Notifier interface {
	PolicyApplied(ctx context.Context, ev *PolicyEvent) error
}
