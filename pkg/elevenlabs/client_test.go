package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTextToSpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/text-to-speech/voice123" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "secret" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("xi-api-key"))
		}
		if r.Header.Get("Accept") != "audio/mpeg" {
			t.Errorf("Expected Accept audio/mpeg, got %s", r.Header.Get("Accept"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}

		body, _ := io.ReadAll(r.Body)
		var raw map[string]any
		if err := json.Unmarshal(body, &raw); err != nil {
			t.Errorf("Failed to unmarshal request: %v", err)
		}
		if raw["text"] != "Hello" || raw["model_id"] != "eleven_v3" {
			t.Errorf("Unexpected body %s", body)
		}
		settings, _ := raw["voice_settings"].(map[string]any)
		if settings["similarity_boost"] != 0.75 || settings["speed"] != 1.0 {
			t.Errorf("Unexpected voice settings %v", settings)
		}

		w.Write([]byte("mock-audio-data"))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret")
	audio, err := client.TextToSpeech(context.Background(), "voice123", TextToSpeechRequest{
		Text:          "Hello",
		ModelID:       "eleven_v3",
		VoiceSettings: VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75, Speed: 1},
	})
	if err != nil {
		t.Fatalf("TextToSpeech failed: %v", err)
	}
	if string(audio) != "mock-audio-data" {
		t.Errorf("Expected 'mock-audio-data', got '%s'", string(audio))
	}
}

func TestTextToSpeechErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/text-to-speech/empty" {
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad")

	_, err := client.TextToSpeech(context.Background(), "voice123", TextToSpeechRequest{Text: "x"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 StatusError, got %v", err)
	}
	if statusErr.Body != `{"detail":"invalid api key"}` {
		t.Errorf("Unexpected error body %q", statusErr.Body)
	}

	_, err = client.TextToSpeech(context.Background(), "empty", TextToSpeechRequest{Text: "x"})
	if !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Expected ErrEmptyAudio, got %v", err)
	}
}

func TestDeleteVoice(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodDelete || r.URL.Path != "/v1/voices/voice123" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.ContentLength > 0 {
			t.Errorf("DELETE should not carry a body")
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	if err := NewClient(server.URL, "secret").DeleteVoice(context.Background(), "voice123"); err != nil {
		t.Fatalf("DeleteVoice failed: %v", err)
	}
	if !called {
		t.Error("server not called")
	}
}

func TestSimulateConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/agents/agent_1/simulate-conversation" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Unexpected Accept %s", r.Header.Get("Accept"))
		}
		w.Write([]byte(`{"simulated_conversation":[]}`))
	}))
	defer server.Close()

	simulation := map[string]any{"simulation_specification": map[string]any{}}
	body, err := NewClient(server.URL, "secret").SimulateConversation(context.Background(), "agent_1", simulation)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"simulated_conversation":[]}` {
		t.Errorf("Unexpected body %s", body)
	}
}
