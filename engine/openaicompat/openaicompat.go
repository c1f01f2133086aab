package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ineyio/speechgate"
)

// Engine is a universal OpenAI-compatible /audio/transcriptions adapter.
// Works with OpenAI, a self-hosted whisper server, faster-whisper-server,
// LocalAI and others.
type Engine struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ speechgate.Engine = (*Engine)(nil)

// Option configures the engine.
type Option func(*Engine)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// WithAPIKey sets the bearer token. Self-hosted servers usually need none.
func WithAPIKey(key string) Option {
	return func(e *Engine) { e.apiKey = key }
}

// WithModel sets the transcription model (default "whisper-1").
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// New creates a new OpenAI-compatible engine.
func New(name, baseURL string, opts ...Option) *Engine {
	e := &Engine{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      "whisper-1",
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewOpenAI creates an engine for the hosted OpenAI API.
func NewOpenAI(apiKey string, opts ...Option) *Engine {
	return New("openai", "https://api.openai.com/v1", append([]Option{WithAPIKey(apiKey)}, opts...)...)
}

func (e *Engine) Name() string { return e.name }

type apiResponse struct {
	Text string `json:"text"`
}

func (e *Engine) Transcribe(ctx context.Context, req speechgate.EngineRequest) (speechgate.Transcription, error) {
	body, contentType, err := e.buildForm(req)
	if err != nil {
		return speechgate.Transcription{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return speechgate.Transcription{}, fmt.Errorf("speechgate: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return speechgate.Transcription{}, ctx.Err()
		}
		return speechgate.Transcription{}, fmt.Errorf("%w: %v", speechgate.ErrServiceRequest, err)
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return speechgate.Transcription{}, err
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return speechgate.Transcription{}, fmt.Errorf("%w: decode response: %v", speechgate.ErrServiceRequest, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return speechgate.Transcription{}, speechgate.ErrUnintelligible
	}
	return speechgate.Transcription{Text: text}, nil
}

func (e *Engine) buildForm(req speechgate.EngineRequest) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	name := "audio.wav"
	if req.Clip.Path != "" {
		name = filepath.Base(req.Clip.Path)
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("speechgate: create form file: %w", err)
	}
	if _, err := part.Write(req.Clip.Data); err != nil {
		return nil, "", fmt.Errorf("speechgate: write audio: %w", err)
	}
	if err := w.WriteField("model", e.model); err != nil {
		return nil, "", fmt.Errorf("speechgate: write model field: %w", err)
	}
	if lang := baseLanguage(req.Language); lang != "" {
		if err := w.WriteField("language", lang); err != nil {
			return nil, "", fmt.Errorf("speechgate: write language field: %w", err)
		}
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", fmt.Errorf("speechgate: write format field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("speechgate: close form: %w", err)
	}
	return body, w.FormDataContentType(), nil
}

// baseLanguage reduces a BCP-47 tag ("en-US") to the ISO-639-1 code whisper expects.
func baseLanguage(tag string) string {
	lang, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(lang)
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read body for error context, but don't fail if we can't.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return speechgate.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return speechgate.ErrAuthFailed
	default:
		return fmt.Errorf("%w: status %d: %s", speechgate.ErrServiceRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
