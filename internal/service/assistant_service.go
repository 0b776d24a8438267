package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vision-assist/backend/internal/analysis"
	"vision-assist/backend/internal/prompt"
	"vision-assist/backend/internal/tts"
	"vision-assist/backend/pkg/logger"
	"vision-assist/backend/pkg/observability"
)

// Pipeline stages reported by StageError
const (
	StageAnalysis  = observability.StageAnalysis
	StageSynthesis = observability.StageSynthesis
)

// ErrEmptySpeech means the model produced no utterance
var ErrEmptySpeech = errors.New("model returned an empty response")

// StageError records which pipeline stage failed
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Speaker is satisfied by *tts.Synthesizer
type Speaker interface {
	Synthesize(ctx context.Context, text, languageCode, voiceName string) ([]byte, error)
}

// TTSParams select the synthesis voice. Empty fields use the defaults.
type TTSParams struct {
	LanguageCode string
	VoiceName    string
}

// AssistantService runs analyze, then synthesize
type AssistantService struct {
	assembler *analysis.Assembler
	invoker   *analysis.Invoker
	models    analysis.GeneratorProvider
	speaker   Speaker
	metrics   *observability.Metrics
	tracer    trace.Tracer
	log       *logger.Logger
}

// NewAssistantService creates the pipeline service
func NewAssistantService(
	assembler *analysis.Assembler,
	invoker *analysis.Invoker,
	models analysis.GeneratorProvider,
	speaker Speaker,
	metrics *observability.Metrics,
	log *logger.Logger,
) *AssistantService {
	if log == nil {
		log = logger.Discard()
	}
	return &AssistantService{
		assembler: assembler,
		invoker:   invoker,
		models:    models,
		speaker:   speaker,
		metrics:   metrics,
		tracer:    otel.Tracer("vision-assist/assistant"),
		log:       log.WithComponent("assistant"),
	}
}

// Analyze returns the speech-ready answer for req. Validation fails before
// any model client is built.
func (s *AssistantService) Analyze(ctx context.Context, req analysis.Request, profile *prompt.Profile) (analysis.SpeechResult, error) {
	ctx, span := s.tracer.Start(ctx, "assistant.analyze")
	defer span.End()
	start := time.Now()

	res, err := s.analyze(ctx, req, profile)
	s.metrics.RecordStage(ctx, StageAnalysis, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return analysis.SpeechResult{}, &StageError{Stage: StageAnalysis, Err: err}
	}

	s.metrics.RecordExtraction(ctx, string(res.Source))
	span.SetAttributes(attribute.String("extraction.source", string(res.Source)))
	return res, nil
}

func (s *AssistantService) analyze(ctx context.Context, req analysis.Request, profile *prompt.Profile) (analysis.SpeechResult, error) {
	asm, err := s.assembler.Assemble(req, profile)
	if err != nil {
		return analysis.SpeechResult{}, err
	}

	gen, err := s.models.Generator(ctx)
	if err != nil {
		return analysis.SpeechResult{}, err
	}

	logger.FromContext(ctx, s.log).Info("Analyzing request",
		"model", asm.Model,
		"has_image", req.Image != nil,
		"has_action", req.ActionHint != "",
		"personalized", profile != nil,
		"thinking", asm.EnableThinking,
	)

	res, err := s.invoker.Invoke(ctx, gen, asm)
	if err != nil {
		return analysis.SpeechResult{}, err
	}
	if strings.TrimSpace(res.Speech) == "" {
		return analysis.SpeechResult{}, ErrEmptySpeech
	}
	return res, nil
}

// Speak synthesizes text and returns a WAV file
func (s *AssistantService) Speak(ctx context.Context, text string, params TTSParams) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "assistant.synthesize")
	defer span.End()
	start := time.Now()

	audio, err := s.speaker.Synthesize(ctx, text, params.LanguageCode, params.VoiceName)
	if err == nil {
		audio, err = tts.EnsureWAV(audio)
	}
	s.metrics.RecordStage(ctx, StageSynthesis, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StageError{Stage: StageSynthesis, Err: err}
	}

	span.SetAttributes(attribute.Int("audio.bytes", len(audio)))
	return audio, nil
}

// AnalyzeAndSpeak runs Analyze and, only when it yields speech, Speak
func (s *AssistantService) AnalyzeAndSpeak(ctx context.Context, req analysis.Request, profile *prompt.Profile, params TTSParams) ([]byte, error) {
	res, err := s.Analyze(ctx, req, profile)
	if err != nil {
		return nil, err
	}
	return s.Speak(ctx, res.Speech, params)
}

// SystemPrompt returns the instruction that would be sent for profile
func (s *AssistantService) SystemPrompt(profile *prompt.Profile) string {
	return s.assembler.Instruction(profile)
}
