package suppliers

import (
	"net/http"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/kernel"
)

// Provider tags the upstream AI vendor a credential belongs to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderDeepseek  Provider = "deepseek"
	ProviderAzure     Provider = "azure"
	ProviderCustom    Provider = "custom"
)

// Valid reports whether the tag is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderDeepseek, ProviderAzure, ProviderCustom:
		return true
	}
	return false
}

// Credential is the domain shape of one provider credential. The secret is
// populated only on reads that explicitly request plaintext; at rest it is
// a pgcrypto blob the application never sees.
type Credential struct {
	ID       kernel.CredentialID `json:"id"`
	TenantID kernel.TenantID     `json:"tenant_id"`
	Provider Provider            `json:"provider"`
	Name     string              `json:"name"`

	// Secret is the decrypted API key. Held in memory only, never logged,
	// never serialized.
	Secret string `json:"-"`

	Endpoint     string            `json:"endpoint,omitempty"`
	ModelConfigs map[string]string `json:"model_configs,omitempty"`
	IsActive     bool              `json:"is_active"`

	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// View is what the selector hands to internal callers: the credential with
// its decrypted secret. It exists as a separate type so the bare Credential
// can be listed without plaintext.
type View struct {
	ID       kernel.CredentialID `json:"id"`
	Provider Provider            `json:"provider"`
	Name     string              `json:"name"`
	Secret   string              `json:"api_key"`
	Endpoint string              `json:"endpoint,omitempty"`
	Model    string              `json:"model,omitempty"`
}

// Strategy names a selection ordering.
type Strategy string

const (
	StrategyFirstAvailable Strategy = "first_available"
	StrategyRoundRobin     Strategy = "round_robin"
	StrategyLeastUsed      Strategy = "least_used"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyFirstAvailable, StrategyRoundRobin, StrategyLeastUsed:
		return true
	}
	return false
}

// SelectOptions filters and orders a selection.
type SelectOptions struct {
	Strategy   Strategy   `json:"strategy"`
	OnlyActive bool       `json:"only_active"`
	Providers  []Provider `json:"providers,omitempty"`
}

// ProbeKind names the two credential tests.
type ProbeKind string

const (
	ProbeModelList  ProbeKind = "model_list"
	ProbeCompletion ProbeKind = "completion"
)

// ProbeErrorKind classifies a failed probe.
type ProbeErrorKind string

const (
	ProbeTimeout      ProbeErrorKind = "Timeout"
	ProbeUnauthorized ProbeErrorKind = "Unauthorized"
	ProbeRateLimited  ProbeErrorKind = "RateLimited"
	ProbeOther        ProbeErrorKind = "Other"
)

// ProbeResult is the outcome of one credential test.
type ProbeResult struct {
	Success   bool                   `json:"success"`
	Ms        int64                  `json:"ms"`
	Error     string                 `json:"error,omitempty"`
	ErrorKind ProbeErrorKind         `json:"error_kind,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("suppliers")

var (
	CodeCredentialNotFound  = ErrRegistry.Register(3003, errx.TypeNotFound, http.StatusNotFound, "Credential not found")
	CodeDuplicateCredential = ErrRegistry.Register(3008, errx.TypeConflict, http.StatusConflict, "A credential with this name already exists for the provider")
	CodeInvalidProvider     = ErrRegistry.Register(1002, errx.TypeValidation, http.StatusBadRequest, "Unknown provider")
	CodeInvalidStrategy     = ErrRegistry.Register(1007, errx.TypeValidation, http.StatusBadRequest, "Unknown selection strategy")
	CodeDecryptFailed       = ErrRegistry.Register(5001, errx.TypeInternal, http.StatusInternalServerError, "Failed to decrypt credential secret")
)

func ErrCredentialNotFound() *errx.Error  { return ErrRegistry.New(CodeCredentialNotFound) }
func ErrDuplicateCredential() *errx.Error { return ErrRegistry.New(CodeDuplicateCredential) }

func ErrInvalidProvider(p Provider) *errx.Error {
	return ErrRegistry.New(CodeInvalidProvider).WithDetail("provider", string(p))
}

func ErrInvalidStrategy(s Strategy) *errx.Error {
	return ErrRegistry.New(CodeInvalidStrategy).WithDetail("strategy", string(s))
}

// ErrDecryptFailed is deliberately loud: a decrypt failure means key or data
// corruption and must never degrade into an empty secret.
func ErrDecryptFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeDecryptFailed, cause)
}
