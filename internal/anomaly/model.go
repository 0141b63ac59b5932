package anomaly

// Record is a single cost-anomaly entry from the reference data set.
// Records are baked in at deployment time and never mutated at runtime.
type Record struct {
	AnomalyID     string  `json:"anomaly_id"`
	ResourceARN   string  `json:"resource_arn"`
	AnomalyType   string  `json:"anomaly_type"`
	CostImpactUSD float64 `json:"cost_impact_usd"`
	Service       string  `json:"service"`
	Description   string  `json:"description,omitempty"`
}
