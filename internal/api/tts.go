package api

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"vision-assist/backend/internal/service"
)

// SynthesizeRequest is the body of both TTS endpoints
type SynthesizeRequest struct {
	Text         string `json:"text" binding:"required"`
	LanguageCode string `json:"language_code,omitempty"`
	VoiceName    string `json:"voice_name,omitempty"`
}

// SynthesizeResponse carries the audio as a data URL
type SynthesizeResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	AudioURL string `json:"audio_url,omitempty"`
}

// TTSHandler exposes direct speech synthesis
type TTSHandler struct {
	assistant *service.AssistantService
}

// NewTTSHandler creates a new TTS handler
func NewTTSHandler(assistant *service.AssistantService) *TTSHandler {
	return &TTSHandler{assistant: assistant}
}

// RegisterRoutes mounts the handler under /tts
func (h *TTSHandler) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/tts")
	{
		group.POST("/synthesize", h.Synthesize)
		group.POST("/synthesize-stream", h.SynthesizeStream)
	}
}

// Synthesize returns the audio inline as base64
func (h *TTSHandler) Synthesize(c *gin.Context) {
	audio, ok := h.speak(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, SynthesizeResponse{
		Success:  true,
		Message:  "Speech synthesized successfully",
		AudioURL: "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(audio),
	})
}

// SynthesizeStream returns the audio as a WAV attachment
func (h *TTSHandler) SynthesizeStream(c *gin.Context) {
	audio, ok := h.speak(c)
	if !ok {
		return
	}
	writeWAV(c, "synthesized_audio.wav", audio)
}

func (h *TTSHandler) speak(c *gin.Context) ([]byte, bool) {
	var req SynthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err.Error())
		return nil, false
	}

	audio, err := h.assistant.Speak(c.Request.Context(), req.Text, service.TTSParams{
		LanguageCode: req.LanguageCode,
		VoiceName:    req.VoiceName,
	})
	if err != nil {
		abortWith(c, err)
		return nil, false
	}
	return audio, true
}
