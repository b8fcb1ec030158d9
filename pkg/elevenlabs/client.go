package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultBaseURL = "https://api.elevenlabs.io"

// ErrEmptyAudio is returned when the API answers 2xx without a body.
var ErrEmptyAudio = errors.New("elevenlabs: empty audio response")

var tracer = otel.Tracer("github.com/wachiwi/tts-catalog/pkg/elevenlabs")

// StatusError carries a non-2xx API response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elevenlabs: status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
	Style           float64 `json:"style"`
}

type TextToSpeechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// TextToSpeech synthesizes req with voiceID and returns the MPEG audio.
func (c *Client) TextToSpeech(ctx context.Context, voiceID string, req TextToSpeechRequest) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "elevenlabs.TextToSpeech")
	defer span.End()
	span.SetAttributes(attribute.String("voice.id", voiceID), attribute.String("model.id", req.ModelID))

	audio, err := c.do(ctx, http.MethodPost, "/v1/text-to-speech/"+url.PathEscape(voiceID), "audio/mpeg", req)
	if err == nil && len(audio) == 0 {
		err = ErrEmptyAudio
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return audio, nil
}

// SimulateConversation runs a simulated conversation against agentID and
// returns the raw JSON response. simulation is sent as the request body.
func (c *Client) SimulateConversation(ctx context.Context, agentID string, simulation any) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "elevenlabs.SimulateConversation")
	defer span.End()
	span.SetAttributes(attribute.String("agent.id", agentID))

	body, err := c.do(ctx, http.MethodPost, "/v1/convai/agents/"+url.PathEscape(agentID)+"/simulate-conversation", "application/json", simulation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

// DeleteVoice removes voiceID from the account.
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	ctx, span := tracer.Start(ctx, "elevenlabs.DeleteVoice")
	defer span.End()

	if _, err := c.do(ctx, http.MethodDelete, "/v1/voices/"+url.PathEscape(voiceID), "application/json", nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, accept string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		requestBody, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(requestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.APIKey)
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
