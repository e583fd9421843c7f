package supplierssrv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"
	"google.golang.org/genai"

	"github.com/axonlabs/axongate/pkg/suppliers"
)

// probeTimeout bounds every provider round trip.
const probeTimeout = 10 * time.Second

// deepseekBaseURL is the OpenAI-compatible endpoint deepseek credentials
// default to when no override is configured.
const deepseekBaseURL = "https://api.deepseek.com/v1"

var defaultProbeModels = map[suppliers.Provider]string{
	suppliers.ProviderOpenAI:    "gpt-4o-mini",
	suppliers.ProviderAnthropic: "claude-3-5-haiku-latest",
	suppliers.ProviderGoogle:    "gemini-2.0-flash",
	suppliers.ProviderDeepseek:  "deepseek-chat",
}

// SDKProber implements suppliers.Prober with the official provider SDKs.
// Deepseek, azure, and custom credentials go through the OpenAI-compatible
// client against their configured endpoint.
type SDKProber struct{}

// NewSDKProber creates the prober.
func NewSDKProber() *SDKProber {
	return &SDKProber{}
}

// Probe runs one test and classifies the outcome. The returned result is
// always non-nil; transport and provider failures land in ErrorKind, not in
// a Go error.
func (p *SDKProber) Probe(ctx context.Context, cred *suppliers.Credential, kind suppliers.ProbeKind, model string) *suppliers.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if model == "" {
		if m, ok := cred.ModelConfigs["default"]; ok && m != "" {
			model = m
		} else {
			model = defaultProbeModels[cred.Provider]
		}
	}

	start := time.Now()
	var details map[string]interface{}
	var err error

	switch cred.Provider {
	case suppliers.ProviderAnthropic:
		details, err = p.probeAnthropic(ctx, cred, kind, model)
	case suppliers.ProviderGoogle:
		details, err = p.probeGoogle(ctx, cred, kind, model)
	case suppliers.ProviderOpenAI, suppliers.ProviderDeepseek, suppliers.ProviderAzure, suppliers.ProviderCustom:
		details, err = p.probeOpenAICompatible(ctx, cred, kind, model)
	default:
		err = suppliers.ErrInvalidProvider(cred.Provider)
	}

	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &suppliers.ProbeResult{
			Success:   false,
			Ms:        elapsed,
			Error:     err.Error(),
			ErrorKind: classifyProbeError(err),
		}
	}
	return &suppliers.ProbeResult{Success: true, Ms: elapsed, Details: details}
}

func (p *SDKProber) probeOpenAICompatible(ctx context.Context, cred *suppliers.Credential, kind suppliers.ProbeKind, model string) (map[string]interface{}, error) {
	opts := []openaioption.RequestOption{openaioption.WithAPIKey(cred.Secret)}
	switch {
	case cred.Endpoint != "":
		opts = append(opts, openaioption.WithBaseURL(cred.Endpoint))
	case cred.Provider == suppliers.ProviderDeepseek:
		opts = append(opts, openaioption.WithBaseURL(deepseekBaseURL))
	case cred.Provider == suppliers.ProviderAzure, cred.Provider == suppliers.ProviderCustom:
		return nil, fmt.Errorf("provider %s requires an endpoint override", cred.Provider)
	}
	client := openai.NewClient(opts...)

	if kind == suppliers.ProbeModelList {
		page, err := client.Models.List(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"models": len(page.Data)}, nil
	}

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(model),
		MaxTokens: openai.Int(5),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"model": completion.Model}, nil
}

func (p *SDKProber) probeAnthropic(ctx context.Context, cred *suppliers.Credential, kind suppliers.ProbeKind, model string) (map[string]interface{}, error) {
	opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(cred.Secret)}
	if cred.Endpoint != "" {
		opts = append(opts, anthropicoption.WithBaseURL(cred.Endpoint))
	}
	client := anthropic.NewClient(opts...)

	if kind == suppliers.ProbeModelList {
		page, err := client.Models.List(ctx, anthropic.ModelListParams{})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"models": len(page.Data)}, nil
	}

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 5,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"model": string(msg.Model)}, nil
}

func (p *SDKProber) probeGoogle(ctx context.Context, cred *suppliers.Credential, kind suppliers.ProbeKind, model string) (map[string]interface{}, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cred.Secret,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	if kind == suppliers.ProbeModelList {
		page, err := client.Models.List(ctx, &genai.ListModelsConfig{})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"models": len(page.Items)}, nil
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text("ping"), &genai.GenerateContentConfig{
		MaxOutputTokens: 5,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"model": resp.ModelVersion}, nil
}

// classifyProbeError maps transport and provider failures onto the closed
// probe error set, following the providers' message conventions.
func classifyProbeError(err error) suppliers.ProbeErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return suppliers.ProbeTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return suppliers.ProbeTimeout
	case strings.Contains(msg, "401") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "incorrect api key") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "api key not valid") ||
		strings.Contains(msg, "permission denied"):
		return suppliers.ProbeUnauthorized
	case strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted"):
		return suppliers.ProbeRateLimited
	default:
		return suppliers.ProbeOther
	}
}
