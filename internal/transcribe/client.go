package transcribe

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// CallOptions are the per-request hints forwarded to the service.
type CallOptions struct {
	Language string // ISO-639-1 hint, empty or "auto" to autodetect
	Prompt   string // optional context to bias decoding
}

// Remote is a single whole-file or per-chunk call to the speech service.
type Remote interface {
	Transcribe(ctx context.Context, path string, opts CallOptions) (string, error)
	Translate(ctx context.Context, path string, opts CallOptions) (string, error)
}

// ClientConfig selects between the public OpenAI API (empty Endpoint) and
// an Azure OpenAI deployment.
type ClientConfig struct {
	APIKey     string
	Endpoint   string
	APIVersion string
	Model      string
	Deployment string
}

// Client calls the whisper transcription/translation endpoints.
type Client struct {
	api   *openai.Client
	model string
}

func NewClient(cfg ClientConfig) *Client {
	var oc openai.ClientConfig
	if cfg.Endpoint != "" {
		oc = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			oc.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Deployment
		if deployment != "" {
			oc.AzureModelMapperFunc = func(string) string { return deployment }
		}
	} else {
		oc = openai.DefaultConfig(cfg.APIKey)
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &Client{
		api:   openai.NewClientWithConfig(oc),
		model: model,
	}
}

func (c *Client) Transcribe(ctx context.Context, path string, opts CallOptions) (string, error) {
	req := c.audioRequest(path, opts)
	resp, err := c.api.CreateTranscription(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Translate asks the service for an English rendering of the audio. The
// language hint does not apply here; whisper detects the source language.
func (c *Client) Translate(ctx context.Context, path string, opts CallOptions) (string, error) {
	req := c.audioRequest(path, CallOptions{Prompt: opts.Prompt})
	resp, err := c.api.CreateTranslation(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Client) audioRequest(path string, opts CallOptions) openai.AudioRequest {
	req := openai.AudioRequest{
		Model:    c.model,
		FilePath: path,
		Prompt:   opts.Prompt,
		Format:   openai.AudioResponseFormatText,
	}
	if opts.Language != "" && opts.Language != "auto" {
		req.Language = opts.Language
	}
	return req
}

// classify wraps SDK errors as RemoteError with a transience verdict.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{
			StatusCode: apiErr.HTTPStatusCode,
			Transient:  retryableStatus(apiErr.HTTPStatusCode),
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RemoteError{
			StatusCode: reqErr.HTTPStatusCode,
			Transient:  reqErr.HTTPStatusCode == 0 || retryableStatus(reqErr.HTTPStatusCode),
			Err:        err,
		}
	}
	// Transport-level failure before any HTTP status existed.
	return &RemoteError{Transient: true, Err: err}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
