// Package anomaly defines the cost-anomaly reference data model, the Store
// interface for looking records up, and the get_anomaly_details tool the
// agent runtime invokes against that data.
package anomaly
