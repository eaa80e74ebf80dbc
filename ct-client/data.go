package ct_client

import "time"

const (
	// DefaultBaseURL is the crt.sh search endpoint.
	DefaultBaseURL = "https://crt.sh"
	// DefaultTimeout bounds the whole query, connect plus body read.
	DefaultTimeout = 10 * time.Second
	// UserAgent is sent on every certificate-log query.
	UserAgent = "recon-api/0.1"
)

// crtEntry defines the JSON structure returned by crt.sh
type crtEntry struct {
	NameValue string `json:"name_value"`
}

// Config defines the configuration of the certificate-log client.
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	StrictSuffix bool          `yaml:"strict_suffix"`
}
