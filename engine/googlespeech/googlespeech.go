// Package googlespeech is the Google Cloud Speech-to-Text v1 REST adapter,
// the metered cloud backend.
package googlespeech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ineyio/speechgate"
)

const defaultBaseURL = "https://speech.googleapis.com/v1"

// Engine is the Google Speech-to-Text adapter.
type Engine struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ speechgate.Engine = (*Engine)(nil)

// Option configures the engine.
type Option func(*Engine)

// WithBaseURL sets a custom base URL.
func WithBaseURL(u string) Option {
	return func(e *Engine) { e.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// New creates a new Google Speech engine authenticated by API key.
func New(apiKey string, opts ...Option) *Engine {
	e := &Engine{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "googlespeech" }

// Speech API types.
type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognitionConfig struct {
	Encoding              string `json:"encoding,omitempty"`
	SampleRateHertz       int    `json:"sampleRateHertz,omitempty"`
	AudioChannelCount     int    `json:"audioChannelCount,omitempty"`
	LanguageCode          string `json:"languageCode"`
	MaxAlternatives       int    `json:"maxAlternatives,omitempty"`
	EnableWordTimeOffsets bool   `json:"enableWordTimeOffsets"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				StartTime string `json:"startTime"`
				EndTime   string `json:"endTime"`
				Word      string `json:"word"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"results"`
}

func (e *Engine) Transcribe(ctx context.Context, req speechgate.EngineRequest) (speechgate.Transcription, error) {
	body := recognizeRequest{
		Config: recognitionConfig{
			SampleRateHertz:       req.Clip.SampleRate,
			AudioChannelCount:     req.Clip.Channels,
			LanguageCode:          req.Language,
			MaxAlternatives:       req.MaxAlternatives,
			EnableWordTimeOffsets: true,
		},
		Audio: recognitionAudio{Content: base64.StdEncoding.EncodeToString(req.Clip.Data)},
	}
	if req.Clip.BitDepth == 16 {
		body.Config.Encoding = "LINEAR16"
	}

	httpResp, err := e.doRequest(ctx, body)
	if err != nil {
		return speechgate.Transcription{}, err
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return speechgate.Transcription{}, err
	}

	var resp recognizeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return speechgate.Transcription{}, fmt.Errorf("%w: decode googlespeech response: %v", speechgate.ErrServiceRequest, err)
	}

	// An empty result list is a completed, billed call that heard nothing.
	return toTranscription(resp), nil
}

func (e *Engine) doRequest(ctx context.Context, body recognizeRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("speechgate: marshal googlespeech request: %w", err)
	}

	u := e.baseURL + "/speech:recognize?key=" + url.QueryEscape(e.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("speechgate: create googlespeech request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", speechgate.ErrServiceRequest, err)
	}
	return resp, nil
}

func toTranscription(resp recognizeResponse) speechgate.Transcription {
	var tr speechgate.Transcription
	for _, r := range resp.Results {
		var res speechgate.Result
		for _, a := range r.Alternatives {
			alt := speechgate.Alternative{Transcript: a.Transcript, Confidence: a.Confidence}
			for _, w := range a.Words {
				alt.Words = append(alt.Words, speechgate.Word{
					Word:      w.Word,
					StartTime: parseOffset(w.StartTime),
					EndTime:   parseOffset(w.EndTime),
				})
			}
			// Only the top alternative carries word offsets.
			if len(alt.Words) == 0 {
				for _, w := range strings.Fields(a.Transcript) {
					alt.Words = append(alt.Words, speechgate.Word{Word: w})
				}
			}
			res.Alternatives = append(res.Alternatives, alt)
		}
		tr.Results = append(tr.Results, res)
	}
	return tr
}

// parseOffset parses a protobuf Duration in JSON form ("1.300s").
func parseOffset(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
	if err != nil {
		return 0
	}
	return v
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
