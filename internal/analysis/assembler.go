// Package analysis turns an image and/or text into a model request and
// reduces the model's structured output to one speech-ready string.
package analysis

import (
	"strings"

	"google.golang.org/genai"

	"vision-assist/backend/internal/prompt"
)

// Image is an uploaded picture held fully in memory
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is one analyze call
type Request struct {
	Image *Image
	Text  string
	// ActionHint is contextual metadata such as a recognized voice command
	ActionHint string
	// SystemInstruction replaces the composed instruction when set
	SystemInstruction string
	Model             string
}

// Assembly is a fully prepared model call
type Assembly struct {
	Model          string
	Contents       []*genai.Content
	Config         *genai.GenerateContentConfig
	EnableThinking bool
	Shape          ResponseShape
}

// AssemblerConfig configures an Assembler
type AssemblerConfig struct {
	DefaultModel   string
	ThinkingBudget int32
	Shape          ResponseShape
}

// Assembler builds model requests
type Assembler struct {
	composer *prompt.Composer
	cfg      AssemblerConfig
}

// NewAssembler creates an assembler. A nil Shape selects SpeechShape.
func NewAssembler(composer *prompt.Composer, cfg AssemblerConfig) *Assembler {
	if cfg.Shape == nil {
		cfg.Shape = SpeechShape{}
	}
	return &Assembler{composer: composer, cfg: cfg}
}

// SupportsThinking reports whether the model family accepts a thinking budget
func SupportsThinking(model string) bool {
	return strings.Contains(model, "2.5") || strings.Contains(model, "1.5")
}

// ActionMarker formats an action hint as a tagged annotation
func ActionMarker(hint string) string {
	return "<action>" + hint + "</action>"
}

// Assemble validates req and builds the ordered parts and generation config.
// Part order is image, text, then action marker.
func (a *Assembler) Assemble(req Request, profile *prompt.Profile) (*Assembly, error) {
	hasImage := req.Image != nil && len(req.Image.Data) > 0
	text := strings.TrimSpace(req.Text)
	if !hasImage && text == "" {
		return nil, ErrValidation
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = a.cfg.DefaultModel
	}

	var parts []*genai.Part
	if hasImage {
		mime := req.Image.MIMEType
		if mime == "" {
			mime = "application/octet-stream"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, mime))
	}
	if text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}
	if hint := strings.TrimSpace(req.ActionHint); hint != "" {
		parts = append(parts, genai.NewPartFromText(ActionMarker(hint)))
	}

	instruction := a.composer.Resolve(req.SystemInstruction, profile)
	thinking := SupportsThinking(model)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    a.cfg.Shape.Schema(),
	}
	if thinking {
		budget := a.cfg.ThinkingBudget
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}

	return &Assembly{
		Model:          model,
		Contents:       []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		Config:         cfg,
		EnableThinking: thinking,
		Shape:          a.cfg.Shape,
	}, nil
}

// SystemInstruction returns the instruction text carried by the assembly
func (a *Assembly) SystemInstruction() string {
	if a.Config == nil || a.Config.SystemInstruction == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range a.Config.SystemInstruction.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Instruction returns the composed instruction for profile
func (a *Assembler) Instruction(profile *prompt.Profile) string {
	return a.composer.Compose(profile)
}
