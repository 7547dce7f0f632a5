package stability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generation/stable-diffusion-xl-1024-v1-0/generate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var payload struct {
			TextPrompts []struct {
				Text   string  `json:"text"`
				Weight float64 `json:"weight"`
			} `json:"text_prompts"`
			InitImageURL  string  `json:"init_image_url"`
			ImageStrength float64 `json:"image_strength"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.TextPrompts) != 2 {
			t.Errorf("want positive and negative prompts, got %d", len(payload.TextPrompts))
		}
		if payload.TextPrompts[1].Weight != -1 {
			t.Errorf("negative prompt weight = %v", payload.TextPrompts[1].Weight)
		}
		if payload.InitImageURL != "https://cdn.example.com/x.jpg" {
			t.Errorf("init image = %q", payload.InitImageURL)
		}
		_, _ = w.Write([]byte(`{"artifacts":[{"url":"https://cdn.stability.example/out.png","finish_reason":"SUCCESS"}]}`))
	}))
	defer server.Close()

	client := NewClient(Options{APIKey: "key", BaseURL: server.URL})
	result, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:         "watercolor portrait",
		NegativePrompt: "photo",
		InitImageURL:   "https://cdn.example.com/x.jpg",
		ImageStrength:  0.7,
		RequestID:      "run-1",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result.OutputURL != "https://cdn.stability.example/out.png" {
		t.Fatalf("OutputURL = %q", result.OutputURL)
	}
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"name":"internal_error","message":"engine overloaded"}`))
	}))
	defer server.Close()

	client := NewClient(Options{APIKey: "key", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "stability: status 500: engine overloaded" {
		t.Fatalf("error = %q", got)
	}
}

func TestGenerateNoArtifacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"artifacts":[]}`))
	}))
	defer server.Close()

	client := NewClient(Options{APIKey: "key", BaseURL: server.URL})
	if _, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatalf("expected error for empty artifact list")
	}
}

func TestGenerateMissingKey(t *testing.T) {
	client := NewClient(Options{})
	if _, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
