package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bdobrica/Himawari/internal/himawari/params"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultHTTPTimeout = 30 * time.Second
)

// Config configures the OpenAI-compatible provider.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models or any
	// other OpenAI-compatible endpoint. Defaults to the OpenAI API.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s; the
	// classifier applies its own, shorter, per-turn deadline on top.
	Timeout time.Duration
}

// openAIProvider implements Provider using the chat completions API with
// JSON-mode output to guarantee a parseable Result.
type openAIProvider struct {
	cfg    Config
	client *http.Client
}

// NewOpenAI returns a Provider backed by the OpenAI (or compatible) chat
// API. The returned provider is safe for concurrent use.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiFormat struct {
	Type string `json:"type"` // "json_object"
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// classifyPayload is the JSON shape the model is asked to produce.
type classifyPayload struct {
	Intent     string            `json:"intent"`
	Service    string            `json:"service"`
	Parameters map[string]string `json:"parameters"`
	ChangeType string            `json:"change_type"`
	Confidence float64           `json:"confidence"`
	Response   string            `json:"response"`
}

// systemPromptTmpl instructs the model. Two printf verbs are substituted
// at call time: the active service and the parameters collected so far.
const systemPromptTmpl = `You are Himawari, an assistant that provisions AWS resources from chat.

Your only job is to translate the user's message into a structured JSON reading.
You NEVER provision anything yourself and NEVER invent parameter values the user
did not state.

Active service: %s
Parameters collected so far: %s

RULES (strict — do not deviate):
1. Respond ONLY with valid JSON. No markdown, no code fences, no text outside JSON.
2. intent is one of: create, update, deploy, cancel, status, query, cost, access,
   networking, general.
3. service is one of: ec2, s3, lambda — or "" when the message does not imply one.
4. parameters maps canonical field names (environment, instance_type,
   operating_system, storage_size, region, bucket_name, function_name, runtime)
   to values plainly present in the message. Omit fields the user did not state.
5. change_type is "direct" when the user explicitly asks to change a value,
   "ambiguous" when a value is merely mentioned and overwriting a collected
   parameter would need confirmation.
6. confidence is 0.0-1.0.
7. For general intent, put a short helpful reply in "response".

JSON schema for your response:
{
  "intent":      "<intent>",
  "service":     "<service or empty>",
  "parameters":  {"<field>": "<value>", ...},
  "change_type": "direct" | "ambiguous",
  "confidence":  0.0-1.0,
  "response":    "<reply text for general intent>"
}
`

// Classify sends the message to the model and decodes its reading.
func (p *openAIProvider) Classify(ctx context.Context, req Request) (*Result, error) {
	service := string(req.Service)
	if service == "" {
		service = "(none)"
	}
	collected := "(none)"
	if len(req.Collected) > 0 {
		fields := make([]string, 0, len(req.Collected))
		for f, v := range req.Collected {
			fields = append(fields, f+"="+v)
		}
		sort.Strings(fields)
		collected = strings.Join(fields, ", ")
	}

	body := oaiRequest{
		Model: p.cfg.Model,
		Messages: []oaiMessage{
			{Role: "system", Content: fmt.Sprintf(systemPromptTmpl, service, collected)},
			{Role: "user", Content: req.Message},
		},
		MaxTokens:      512,
		ResponseFormat: &oaiFormat{Type: "json_object"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("nlu: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("nlu: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("nlu: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimit
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nlu: read response body: %w", err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("nlu: decode API response: %w", err)
	}

	if oaiResp.Error != nil {
		return nil, fmt.Errorf("nlu: API error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}

	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("nlu: no choices returned (HTTP %d)", resp.StatusCode)
	}

	var payload classifyPayload
	content := oaiResp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v (raw content: %.200s)", ErrMalformedOutput, err, content)
	}

	return payload.toResult(), nil
}

// toResult converts the wire payload into a Result, dropping anything
// outside the closed vocabularies.
func (p *classifyPayload) toResult() *Result {
	res := &Result{
		Confidence: p.Confidence,
		Response:   p.Response,
		Mode:       params.Ambiguous,
	}
	if p.ChangeType == "direct" {
		res.Mode = params.Direct
	}

	switch Intent(p.Intent) {
	case IntentCreate, IntentUpdate, IntentDeploy, IntentCancel, IntentStatus,
		IntentQuery, IntentCost, IntentAccess, IntentNetworking, IntentGeneral:
		res.Intent = Intent(p.Intent)
	default:
		res.Intent = IntentGeneral
	}

	switch params.Service(p.Service) {
	case params.ServiceEC2, params.ServiceS3, params.ServiceLambda:
		res.Service = params.Service(p.Service)
	}

	known := map[string]bool{
		params.FieldEnvironment: true, params.FieldInstanceType: true,
		params.FieldOperatingSystem: true, params.FieldStorageSize: true,
		params.FieldRegion: true, params.FieldBucketName: true,
		params.FieldFunctionName: true, params.FieldRuntime: true,
	}
	fields := make([]string, 0, len(p.Parameters))
	for f := range p.Parameters {
		if known[f] && p.Parameters[f] != "" {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	for _, f := range fields {
		res.Updates = append(res.Updates, params.Update{Field: f, Value: p.Parameters[f]})
	}
	return res
}
