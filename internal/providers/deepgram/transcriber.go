package deepgram

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

	"calltriage/internal/domain"
	"calltriage/internal/providers"
)

const maxErrorBody = 512

// Config controls the Deepgram prerecorded transcription endpoint.
type Config struct {
	APIKey         string
	APIBaseURL     string
	Model          string
	SmartFormat    bool
	DetectLanguage bool
	Timeout        time.Duration
	MaxRetries     uint64
	RetryBackoff   time.Duration
}

// Transcriber implements ports.Transcriber against Deepgram's REST API.
type Transcriber struct {
	cfg    Config
	client *http.Client
}

func NewTranscriber(cfg Config, client *http.Client) *Transcriber {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Transcriber{cfg: cfg, client: client}
}

// Transcribe sends one WAV chunk and returns its text and detected language.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, localeHint domain.Locale) (domain.Transcription, error) {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return domain.Transcription{}, errors.New("DEEPGRAM_API_KEY is not configured")
	}
	listenURL, err := buildListenURL(t.cfg, localeHint)
	if err != nil {
		return domain.Transcription{}, err
	}

	var response listenResponse
	err = providers.Retry(ctx, t.cfg.MaxRetries, t.cfg.RetryBackoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, listenURL, bytes.NewReader(audio))
		if err != nil {
			return providers.Permanent(err)
		}
		req.Header.Set("Authorization", "Token "+t.cfg.APIKey)
		req.Header.Set("Content-Type", "audio/wav")

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("deepgram request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &providers.StatusError{Service: "deepgram", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return providers.Permanent(fmt.Errorf("failed to decode deepgram response: %w", err))
		}
		return nil
	})
	if err != nil {
		return domain.Transcription{}, err
	}

	return domain.Transcription{
		Text:           extractTranscript(response),
		DetectedLocale: extractLanguage(response),
	}, nil
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response listenResponse) string {
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func extractLanguage(response listenResponse) string {
	if len(response.Results.Channels) == 0 {
		return ""
	}
	return strings.TrimSpace(response.Results.Channels[0].DetectedLanguage)
}

func buildListenURL(cfg Config, localeHint domain.Locale) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}
	if listenURL.Scheme != "http" && listenURL.Scheme != "https" {
		return "", fmt.Errorf("invalid Deepgram API base URL %q: scheme must be http or https", cfg.APIBaseURL)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if cfg.DetectLanguage {
		query.Set("detect_language", "true")
	} else if localeHint != "" {
		query.Set("language", string(localeHint))
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
