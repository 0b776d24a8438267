// Package tts converts text to LINEAR16 speech through the Google Cloud
// Text-to-Speech REST API.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vision-assist/backend/pkg/logger"
)

const (
	DefaultEndpoint     = "https://texttospeech.googleapis.com/v1/text:synthesize"
	DefaultLanguageCode = "cmn-CN"
	DefaultVoiceName    = "cmn-CN-Chirp3-HD-Achernar"

	audioEncoding = "LINEAR16"
	maxErrorBody  = 2048
)

// Config configures a Synthesizer
type Config struct {
	Endpoint        string
	ProjectID       string
	DefaultLanguage string
	DefaultVoice    string
	Timeout         time.Duration
}

// Synthesizer calls the provider with at most two attempts: the held token
// first and, after a transport failure, one freshly refreshed token
type Synthesizer struct {
	cfg       Config
	client    *http.Client
	store     CredentialStore
	refresher Refresher
	log       *logger.Logger
}

// NewSynthesizer creates a synthesizer. A nil client uses one with cfg.Timeout.
func NewSynthesizer(cfg Config, client *http.Client, store CredentialStore, refresher Refresher, log *logger.Logger) *Synthesizer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = DefaultLanguageCode
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = DefaultVoiceName
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if store == nil {
		store = NewMemoryStore("")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Synthesizer{cfg: cfg, client: client, store: store, refresher: refresher, log: log}
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceParams    `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Markup string `json:"markup"`
}

type voiceParams struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type audioConfig struct {
	AudioEncoding string `json:"audioEncoding"`
}

type synthesizeResponse struct {
	AudioContent *string `json:"audioContent"`
}

// Synthesize returns the audio for text. Empty languageCode or voiceName
// select the configured defaults.
func (s *Synthesizer) Synthesize(ctx context.Context, text, languageCode, voiceName string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if languageCode == "" {
		languageCode = s.cfg.DefaultLanguage
	}
	if voiceName == "" {
		voiceName = s.cfg.DefaultVoice
	}

	body, err := json.Marshal(synthesizeRequest{
		Input:       synthesisInput{Markup: text},
		Voice:       voiceParams{LanguageCode: languageCode, Name: voiceName},
		AudioConfig: audioConfig{AudioEncoding: audioEncoding},
	})
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}

	log := logger.FromContext(ctx, s.log)

	token, err := s.store.Get(ctx)
	if err != nil {
		log.Warn("Failed to read held TTS token", "error", err)
	}

	audio, err := s.call(ctx, token, body)
	if err == nil {
		return audio, nil
	}
	var transport *transportError
	if !errors.As(err, &transport) {
		return nil, terminal(err, 1)
	}

	log.Info("TTS attempt failed, refreshing token", "status", transport.Status, "error", err)

	if s.refresher == nil {
		return nil, &SynthesisError{Attempts: 1, Err: &CredentialError{Err: errors.New("no token refresher configured")}}
	}
	fresh, rerr := s.refresher.Refresh(ctx)
	if rerr != nil {
		var credErr *CredentialError
		if !errors.As(rerr, &credErr) {
			rerr = &CredentialError{Err: rerr}
		}
		return nil, &SynthesisError{Attempts: 1, Err: rerr}
	}
	if err := s.store.Replace(ctx, fresh); err != nil {
		log.Warn("Failed to store refreshed TTS token", "error", err)
	}

	audio, err = s.call(ctx, fresh, body)
	if err != nil {
		return nil, terminal(err, 2)
	}
	return audio, nil
}

// terminal keeps malformed responses distinct and wraps everything else
func terminal(err error, attempts int) error {
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed
	}
	return &SynthesisError{Attempts: attempts, Err: err}
}

func (s *Synthesizer) call(ctx context.Context, token string, body []byte) ([]byte, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if s.cfg.ProjectID != "" {
		req.Header.Set("X-Goog-User-Project", s.cfg.ProjectID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &transportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &transportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &MalformedResponseError{Reason: "invalid json: " + err.Error()}
	}
	if out.AudioContent == nil || *out.AudioContent == "" {
		return nil, &MalformedResponseError{Reason: "missing audioContent"}
	}

	audio, err := base64.StdEncoding.DecodeString(*out.AudioContent)
	if err != nil {
		return nil, &MalformedResponseError{Reason: "audioContent is not base64: " + err.Error()}
	}
	return audio, nil
}
