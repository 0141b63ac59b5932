package anomaly

import "context"

// Store is the lookup interface for anomaly records.
// Lookup is a pure function from identifier to record-or-absent.
type Store interface {
	Get(ctx context.Context, anomalyID string) (*Record, bool, error)
	List(ctx context.Context) ([]*Record, error)
}
