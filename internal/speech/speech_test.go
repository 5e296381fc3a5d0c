package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iae-bsb/iae-bot/internal/models"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		config := req["config"].(map[string]interface{})
		if config["encoding"] != "OGG_OPUS" {
			t.Errorf("encoding = %v, want OGG_OPUS", config["encoding"])
		}
		if config["languageCode"] != "pt-BR" {
			t.Errorf("languageCode = %v, want pt-BR", config["languageCode"])
		}
		if config["enableAutomaticPunctuation"] != true {
			t.Errorf("enableAutomaticPunctuation = %v, want true", config["enableAutomaticPunctuation"])
		}
		w.Write([]byte(`{"results":[
			{"alternatives":[{"transcript":"quero um bar"}]},
			{"alternatives":[{"transcript":"perto de casa"}]}
		]}`))
	}))
	defer srv.Close()

	g, err := NewGoogle(WithAPIKey("test"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewGoogle() error: %v", err)
	}
	got, err := g.Transcribe(context.Background(), &models.Audio{Base64: "b2s=", MimeType: "audio/ogg"})
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if got != "quero um bar perto de casa" {
		t.Errorf("Transcribe() = %q, want joined transcript", got)
	}
}

func TestTranscribeNonOggOmitsEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		config := req["config"].(map[string]interface{})
		if _, present := config["encoding"]; present {
			t.Errorf("encoding = %v, want omitted for non-ogg audio", config["encoding"])
		}
		if _, present := config["sampleRateHertz"]; present {
			t.Errorf("sampleRateHertz = %v, want omitted for non-ogg audio", config["sampleRateHertz"])
		}
		w.Write([]byte(`{"results":[{"alternatives":[{"transcript":"oi"}]}]}`))
	}))
	defer srv.Close()

	g, _ := NewGoogle(WithAPIKey("test"), WithBaseURL(srv.URL))
	if _, err := g.Transcribe(context.Background(), &models.Audio{Base64: "b2s=", MimeType: "audio/mp4"}); err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
}

func TestTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"API key invalid"}}`))
	}))
	defer srv.Close()

	g, _ := NewGoogle(WithAPIKey("bad"), WithBaseURL(srv.URL))
	if _, err := g.Transcribe(context.Background(), &models.Audio{Base64: "b2s="}); err == nil {
		t.Error("Transcribe() expected error from API error payload")
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	g, _ := NewGoogle(WithAPIKey("test"))
	if _, err := g.Transcribe(context.Background(), nil); err == nil {
		t.Error("Transcribe(nil) expected error")
	}
}
