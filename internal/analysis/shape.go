package analysis

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ResponseShape describes the structured output requested from the model
// and which field of it holds the final utterance
type ResponseShape interface {
	Name() string
	Schema() *genai.Schema
	// target returns a fresh typed value to decode the model output into
	target() utteranceSource
	// fromMap reads the utterance from a generically decoded object
	fromMap(m map[string]any) string
}

type utteranceSource interface {
	utterance() string
}

// Shape names accepted by ShapeByName
const (
	ShapeSpeech = "speech"
	ShapeIntent = "intent"
)

// ShapeByName returns the response shape registered under name
func ShapeByName(name string) (ResponseShape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ShapeSpeech:
		return SpeechShape{}, nil
	case ShapeIntent:
		return IntentShape{}, nil
	default:
		return nil, fmt.Errorf("unknown response shape %q", name)
	}
}

// SpeechResponse is the single-field output shape
type SpeechResponse struct {
	Speech string `json:"speech"`
}

func (r *SpeechResponse) utterance() string { return r.Speech }

// SpeechShape asks the model for one TTS-ready utterance
type SpeechShape struct{}

func (SpeechShape) Name() string { return ShapeSpeech }

func (SpeechShape) Schema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"speech": {
				Type:        genai.TypeString,
				Description: "A single, fluent response suitable for TTS. Keep it concise and natural for speech output.",
			},
		},
		Required: []string{"speech"},
	}
}

func (SpeechShape) target() utteranceSource { return &SpeechResponse{} }

func (SpeechShape) fromMap(m map[string]any) string {
	return stringField(m, "speech")
}

// Intent kinds of the tagged output shape
const (
	IntentDescribe = "describe"
	IntentNavigate = "navigate"
	IntentInfo     = "info"
)

// IntentResponse is the tagged output shape. Intent selects which of the
// remaining fields carries the utterance.
type IntentResponse struct {
	Intent      string `json:"intent"`
	Description string `json:"description,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Answer      string `json:"answer,omitempty"`
}

func (r *IntentResponse) utterance() string {
	return pickIntent(r.Intent, r.Description, r.Instruction, r.Answer)
}

// IntentShape asks the model to classify the request as describe, navigate
// or info and fill the matching field
type IntentShape struct{}

func (IntentShape) Name() string { return ShapeIntent }

func (IntentShape) Schema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"intent": {
				Type:   genai.TypeString,
				Format: "enum",
				Enum:   []string{IntentDescribe, IntentNavigate, IntentInfo},
			},
			"description": {
				Type:        genai.TypeString,
				Description: "For describe: what is on the left, center and right, with relative positions.",
			},
			"instruction": {
				Type:        genai.TypeString,
				Description: "For navigate: concrete actions and directions to reach the goal.",
			},
			"answer": {
				Type:        genai.TypeString,
				Description: "For info: basic factual knowledge about the item.",
			},
		},
		Required: []string{"intent"},
	}
}

func (IntentShape) target() utteranceSource { return &IntentResponse{} }

func (IntentShape) fromMap(m map[string]any) string {
	return pickIntent(
		stringField(m, "intent"),
		stringField(m, "description"),
		stringField(m, "instruction"),
		stringField(m, "answer"),
	)
}

// pickIntent returns the field named by intent, or the first non-empty
// field when the intent is unknown
func pickIntent(intent, description, instruction, answer string) string {
	switch intent {
	case IntentDescribe:
		return description
	case IntentNavigate:
		return instruction
	case IntentInfo:
		return answer
	}
	for _, s := range []string{description, instruction, answer} {
		if s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
