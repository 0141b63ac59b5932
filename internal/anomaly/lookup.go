package anomaly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingAnomalyID is returned verbatim in the error envelope when the
// anomaly_id parameter is absent or empty. The agent-side schema matches on
// this exact text, so it must not change.
var ErrMissingAnomalyID = errors.New("Missing required parameter: anomaly_id")

// notFoundResult is the inner body returned for identifiers with no record.
// Delivered as a result, not an error: the agent is expected to relay it.
const notFoundResult = "ERROR: Anomaly not found"

// Lookup implements the get_anomaly_details action-group function.
type Lookup struct {
	store Store
}

// NewLookup creates the lookup tool backed by the given store.
func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

func (l *Lookup) Name() string { return "get_anomaly_details" }

func (l *Lookup) Description() string {
	return `Look up a cost anomaly record by its anomaly ID. Returns the affected
resource ARN, the anomaly type, and the cost impact in USD, formatted for use
in subsequent runbook retrieval and triage steps.`
}

func (l *Lookup) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "anomaly_id": {
                "type": "string",
                "description": "Opaque identifier of the cost anomaly record, e.g. DB-001"
            }
        },
        "required": ["anomaly_id"]
    }`)
}

// Execute looks the anomaly up and formats the details string the agent
// feeds into its retrieval step.
func (l *Lookup) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input struct {
		AnomalyID string `json:"anomaly_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if input.AnomalyID == "" {
		return nil, ErrMissingAnomalyID
	}

	rec, ok, err := l.store.Get(ctx, input.AnomalyID)
	if err != nil {
		return nil, fmt.Errorf("anomaly lookup: %w", err)
	}
	if !ok {
		return json.Marshal(map[string]string{"result": notFoundResult})
	}

	return json.Marshal(map[string]string{
		"details": fmt.Sprintf("Anomaly found: ResourceARN=%s, Type=%s, Impact=%v",
			rec.ResourceARN, rec.AnomalyType, rec.CostImpactUSD),
	})
}
