package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"vision-assist/backend/pkg/logger"
	"vision-assist/backend/pkg/resilience"
)

// ContentGenerator is the subset of the genai Models service the invoker uses
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Source records which extraction path produced a SpeechResult
type Source string

const (
	SourceStructured Source = "structured"
	SourceRawText    Source = "raw_text"
	SourceRendered   Source = "rendered"
)

// SpeechResult is the single utterance extracted from a model response
type SpeechResult struct {
	Speech string
	Source Source
}

// Invoker calls the model and extracts the utterance
type Invoker struct {
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	log     *logger.Logger
}

// NewInvoker creates an invoker. A nil breaker disables short-circuiting and
// a zero timeout leaves the caller's deadline in place.
func NewInvoker(breaker *resilience.CircuitBreaker, timeout time.Duration, log *logger.Logger) *Invoker {
	if log == nil {
		log = logger.Discard()
	}
	return &Invoker{breaker: breaker, timeout: timeout, log: log}
}

// Invoke sends the assembly to gen and extracts the utterance. Every
// failure of the call itself is returned as an *UpstreamModelError.
func (i *Invoker) Invoke(ctx context.Context, gen ContentGenerator, asm *Assembly) (SpeechResult, error) {
	log := logger.FromContext(ctx, i.log)

	var resp *genai.GenerateContentResponse
	call := func(ctx context.Context) error {
		if i.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, i.timeout)
			defer cancel()
		}
		var err error
		resp, err = gen.GenerateContent(ctx, asm.Model, asm.Contents, asm.Config)
		return err
	}

	var err error
	if i.breaker != nil {
		err = i.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return SpeechResult{}, &UpstreamModelError{Model: asm.Model, Err: err}
	}

	res := extract(asm.Shape, resp, log)
	log.Debug("Model response extracted",
		"model", asm.Model,
		"source", string(res.Source),
		"length", len(res.Speech),
	)
	return res, nil
}

// CountsAgainstBreaker reports whether a model call error means the upstream
// is unhealthy. Client errors such as an unknown model or a rejected request
// body stay with the request; 429, 5xx and transport errors count.
func CountsAgainstBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}

	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return false
	}
	return true
}

// extract applies structured decode, then raw text, then a rendering of
// the whole response
func extract(shape ResponseShape, resp *genai.GenerateContentResponse, log *logger.Logger) SpeechResult {
	if resp == nil {
		return SpeechResult{Source: SourceRendered}
	}
	if shape == nil {
		shape = SpeechShape{}
	}

	raw := resp.Text()

	speech, structured := decodeUtterance(shape, raw)
	if structured {
		if strings.TrimSpace(speech) != "" {
			return SpeechResult{Speech: speech, Source: SourceStructured}
		}
		log.Warn("Structured response has no utterance, using raw text", "shape", shape.Name())
	}

	if strings.TrimSpace(raw) != "" {
		return SpeechResult{Speech: raw, Source: SourceRawText}
	}

	rendered, err := json.Marshal(resp)
	if err == nil && string(rendered) != "{}" {
		return SpeechResult{Speech: string(rendered), Source: SourceRendered}
	}
	return SpeechResult{Source: SourceRendered}
}

// decodeUtterance normalizes the model output into the shape's utterance.
// It tries the shape's typed struct first and a generic object second.
// structured is false when raw is not a JSON object at all.
func decodeUtterance(shape ResponseShape, raw string) (speech string, structured bool) {
	body := strings.TrimSpace(raw)
	if !strings.HasPrefix(body, "{") {
		return "", false
	}

	target := shape.target()
	if err := json.Unmarshal([]byte(body), target); err == nil {
		if s := target.utterance(); s != "" {
			return s, true
		}
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return "", false
	}
	return shape.fromMap(m), true
}
