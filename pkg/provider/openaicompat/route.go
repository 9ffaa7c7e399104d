package openaicompat

import (
	"net/http"
	"strings"
)

// Upstream defaults.
const (
	DefaultEndpoint = "https://api.openai.com/v1"

	ProjectKeyPrefix   = "sk-proj-"
	ProjectAPIVersion  = "2024-04-15"
	ProjectModel       = "gpt-4o-mini"
	apiVersionHeader   = "api-version"
	organizationHeader = "OpenAI-Organization"
)

// CredentialFormat classifies an API key by its prefix.
type CredentialFormat string

const (
	CredentialNone     CredentialFormat = "none"
	CredentialProject  CredentialFormat = "project"
	CredentialStandard CredentialFormat = "standard"
)

// FormatOf returns the format of key.
func FormatOf(key string) CredentialFormat {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return CredentialNone
	case strings.HasPrefix(key, ProjectKeyPrefix):
		return CredentialProject
	default:
		return CredentialStandard
	}
}

// Redacted describes the key format without exposing key material.
func (f CredentialFormat) Redacted() string {
	switch f {
	case CredentialProject:
		return ProjectKeyPrefix + "***"
	case CredentialStandard:
		return "sk-***"
	default:
		return "(unset)"
	}
}

// UpstreamConfig is what the adapter needs to reach the upstream.
type UpstreamConfig struct {
	APIKey         string
	OrganizationID string

	// Endpoint is the base URL including the API version path, e.g.
	// "https://api.openai.com/v1". Empty means DefaultEndpoint.
	Endpoint string

	// HTTPClient is used as the base transport. Optional.
	HTTPClient *http.Client
}

// Route is the outcome of the credential strategy: where calls go, which
// extra headers they carry and whether the model is pinned.
type Route struct {
	Format        CredentialFormat
	BaseURL       string
	Headers       http.Header
	ModelOverride string
}

// ResolveRoute applies the credential strategy to cfg. Project keys always
// go to the vendor endpoint with a pinned API version and model. Any other
// key uses the configured endpoint. The organization header is added for
// both formats when set.
func ResolveRoute(cfg UpstreamConfig) Route {
	r := Route{
		Format:  FormatOf(cfg.APIKey),
		BaseURL: strings.TrimRight(cfg.Endpoint, "/"),
		Headers: http.Header{},
	}
	if r.BaseURL == "" {
		r.BaseURL = DefaultEndpoint
	}

	if r.Format == CredentialProject {
		r.BaseURL = DefaultEndpoint
		r.ModelOverride = ProjectModel
		r.Headers.Set(apiVersionHeader, ProjectAPIVersion)
	}

	if org := strings.TrimSpace(cfg.OrganizationID); org != "" {
		r.Headers.Set(organizationHeader, org)
	}
	return r
}
