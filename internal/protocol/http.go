package protocol

import (
	"encoding/json"
	"strconv"
)

// ExportRequest asks the backend to render the session's last result
// as a Markdown report.
type ExportRequest struct {
	SessionID string `json:"session_id"`
}

// HealthStatus is the backend's health endpoint response.
type HealthStatus struct {
	Status         string      `json:"status"`
	Timestamp      string      `json:"timestamp"`
	ActiveSessions int         `json:"active_sessions"`
	SystemUsage    SystemUsage `json:"system_usage"`
}

// SystemUsage reports backend resource consumption.
type SystemUsage struct {
	RAMUsedMB       MetricValue `json:"ram_used_mb"`
	RAMUsagePercent MetricValue `json:"ram_usage_percent"`
}

// MetricValue is a gauge the backend reports either as a number or as
// the string "N/A" when the measurement is unavailable.
type MetricValue struct {
	Available bool
	Value     float64
}

func (v *MetricValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		v.Available = false
		v.Value = 0
		return nil
	}
	if err := json.Unmarshal(data, &v.Value); err != nil {
		return err
	}
	v.Available = true
	return nil
}

func (v MetricValue) MarshalJSON() ([]byte, error) {
	if !v.Available {
		return json.Marshal("N/A")
	}
	return json.Marshal(v.Value)
}

func (v MetricValue) String() string {
	if !v.Available {
		return "N/A"
	}
	return strconv.FormatFloat(v.Value, 'f', 2, 64)
}
