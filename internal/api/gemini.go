package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vision-assist/backend/internal/analysis"
	"vision-assist/backend/internal/prompt"
	"vision-assist/backend/internal/service"
	"vision-assist/backend/pkg/logger"
	"vision-assist/backend/pkg/middleware"
)

// AssistantHandler serves the analyze endpoints and the prompt preview
type AssistantHandler struct {
	assistant     *service.AssistantService
	users         *service.UserService
	maxUploadSize int64
}

// NewAssistantHandler creates a new assistant handler. A non-positive
// maxUploadSize disables the body limit.
func NewAssistantHandler(assistant *service.AssistantService, users *service.UserService, maxUploadSize int64) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, users: users, maxUploadSize: maxUploadSize}
}

// RegisterRoutes mounts the endpoints. optionalAuth attaches claims when
// a valid token is sent and never rejects.
func (h *AssistantHandler) RegisterRoutes(router gin.IRouter, optionalAuth gin.HandlerFunc) {
	gemini := router.Group("/gemini")
	gemini.Use(optionalAuth)
	{
		gemini.POST("/analyze", h.Analyze)
		gemini.POST("/analyze-and-speak", h.AnalyzeAndSpeak)
	}

	router.GET("/system-prompt", optionalAuth, h.SystemPrompt)
}

// Analyze returns the speech-ready answer as JSON
func (h *AssistantHandler) Analyze(c *gin.Context) {
	req, ok := h.bindAnalyze(c)
	if !ok {
		return
	}

	res, err := h.assistant.Analyze(c.Request.Context(), req, h.profile(c))
	if err != nil {
		abortWith(c, err)
		return
	}

	logger.FromGin(c).Info("Analysis completed", "source", string(res.Source), "chars", len(res.Speech))
	c.JSON(http.StatusOK, gin.H{"result": res.Speech})
}

// AnalyzeAndSpeak returns the spoken answer as a WAV attachment
func (h *AssistantHandler) AnalyzeAndSpeak(c *gin.Context) {
	req, ok := h.bindAnalyze(c)
	if !ok {
		return
	}

	params := service.TTSParams{
		LanguageCode: strings.TrimSpace(c.PostForm("language_code")),
		VoiceName:    strings.TrimSpace(c.PostForm("voice_name")),
	}

	audio, err := h.assistant.AnalyzeAndSpeak(c.Request.Context(), req, h.profile(c), params)
	if err != nil {
		abortWith(c, err)
		return
	}

	writeWAV(c, "speech.wav", audio)
}

// SystemPrompt previews the instruction composed for the caller
func (h *AssistantHandler) SystemPrompt(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"system_prompt": h.assistant.SystemPrompt(h.profile(c))})
}

func (h *AssistantHandler) profile(c *gin.Context) *prompt.Profile {
	claims, _ := middleware.ClaimsFrom(c)
	return h.users.ResolveOptionalUser(c.Request.Context(), claims).Profile()
}

// bindAnalyze reads the multipart form. Emptiness of image and text is left
// to the assembler so the rule lives in one place.
func (h *AssistantHandler) bindAnalyze(c *gin.Context) (analysis.Request, bool) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	req := analysis.Request{
		Text:              strings.TrimSpace(c.PostForm("text")),
		ActionHint:        strings.TrimSpace(c.PostForm("action")),
		SystemInstruction: strings.TrimSpace(c.PostForm("system_instruction")),
		Model:             strings.TrimSpace(c.PostForm("model")),
	}

	img, err := readImage(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			badRequest(c, fmt.Sprintf("Upload exceeds %d bytes", maxErr.Limit), nil)
		} else {
			badRequest(c, "Invalid image upload", err.Error())
		}
		return analysis.Request{}, false
	}
	req.Image = img
	return req, true
}

func readImage(c *gin.Context) (*analysis.Image, error) {
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &analysis.Image{Data: data, MIMEType: mimeType}, nil
}

func writeWAV(c *gin.Context, filename string, audio []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "audio/wav", audio)
}
