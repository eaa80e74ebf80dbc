package models

// Protocols tried by the liveness prober, in priority order.
const (
	ProtocolHTTPS = "https"
	ProtocolHTTP  = "http"
)

// ProbeResult defines the JSON structure for the liveness result of a single host.
// Nil fields mean the host was not reachable under any scheme.
type ProbeResult struct {
	Host       string  `json:"host"`
	Reachable  bool    `json:"reachable"`
	Protocol   *string `json:"protocol"`
	StatusCode *int    `json:"status_code"`
	FinalURL   *string `json:"final_url"`
	ElapsedMS  *int64  `json:"elapsed_ms"`
	Title      *string `json:"title,omitempty"`
}

// Unreachable returns the result shape used when every scheme failed.
func Unreachable(host string) ProbeResult {
	return ProbeResult{Host: host}
}

// ScanReport defines the JSON structure returned by a full scan.
type ScanReport struct {
	Domain  string        `json:"domain"`
	Total   int           `json:"total"`
	Alive   int           `json:"alive"`
	Results []ProbeResult `json:"results"`
}

// SubdomainList defines the JSON structure returned by a discovery-only request.
type SubdomainList struct {
	Domain     string   `json:"domain"`
	Count      int      `json:"count"`
	Subdomains []string `json:"subdomains"`
}

// Settings defines the runtime scan settings that end users can change.
type Settings struct {
	Concurrency int     `json:"concurrency"`
	ProbeRate   float64 `json:"probe_rate"`
}
