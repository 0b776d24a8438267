package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vision-assist/backend/internal/analysis"
	"vision-assist/backend/internal/prompt"
	"vision-assist/backend/internal/service"
	"vision-assist/backend/internal/tts"
	apperrors "vision-assist/backend/pkg/errors"
	"vision-assist/backend/pkg/jwt"
	"vision-assist/backend/pkg/middleware"
	"vision-assist/backend/pkg/observability"
)

type fakeModel struct {
	text        string
	err         error
	calls       int
	parts       int
	instruction string
}

func (f *fakeModel) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	if len(contents) > 0 {
		f.parts = len(contents[0].Parts)
	}
	if cfg != nil && cfg.SystemInstruction != nil && len(cfg.SystemInstruction.Parts) > 0 {
		f.instruction = cfg.SystemInstruction.Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.text == "" {
		return nil, nil
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.text, genai.RoleModel)}},
	}, nil
}

type staticProvider struct{ gen analysis.ContentGenerator }

func (p staticProvider) Generator(context.Context) (analysis.ContentGenerator, error) {
	return p.gen, nil
}

type testEnv struct {
	engine *gin.Engine
	model  *fakeModel
	users  *service.UserService
	tokens *jwt.Service
	// ttsStatus forces the fake TTS provider to fail with this status
	ttsStatus int
	ttsText   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	env := &testEnv{
		model:  &fakeModel{text: `{"speech":"A cup is in front of you."}`},
		tokens: jwt.NewService("test-secret", time.Hour),
	}
	env.users = service.NewUserService(db, env.tokens, nil)
	require.NoError(t, env.users.Migrate())

	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.ttsStatus != 0 {
			w.WriteHeader(env.ttsStatus)
			return
		}
		var body struct {
			Input struct {
				Markup string `json:"markup"`
			} `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		env.ttsText = body.Input.Markup
		_, _ = w.Write([]byte(`{"audioContent":"` + base64.StdEncoding.EncodeToString(pcm) + `"}`))
	}))
	t.Cleanup(srv.Close)

	refresher := tts.RefresherFunc(func(context.Context) (string, error) {
		return "", errors.New("gcloud not installed")
	})
	synth := tts.NewSynthesizer(tts.Config{Endpoint: srv.URL}, srv.Client(), tts.NewMemoryStore("tok"), refresher, nil)
	assembler := analysis.NewAssembler(prompt.NewComposer("zh-TW"), analysis.AssemblerConfig{DefaultModel: "gemini-2.5-flash-lite"})
	assistant := service.NewAssistantService(assembler, analysis.NewInvoker(nil, 0, nil),
		staticProvider{gen: env.model}, synth, observability.NoopMetrics(), nil)

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	NewUserHandler(env.users).RegisterRoutes(r, middleware.JWTAuth(env.tokens))
	NewAssistantHandler(assistant, env.users, 1<<20).RegisterRoutes(r, middleware.OptionalAuth(env.tokens))
	NewTTSHandler(assistant).RegisterRoutes(r)
	env.engine = r
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) json(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

func (e *testEnv) form(t *testing.T, path string, fields map[string]string, image []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "scene.png")
		require.NoError(t, err)
		_, _ = part.Write(image)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

func (e *testEnv) register(t *testing.T, body string) string {
	t.Helper()
	w := e.json(http.MethodPost, "/users/register", body, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Detail string `json:"detail"`
		Error  struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	assert.NotEmpty(t, resp.Detail)
	return resp.Error.Code
}

func TestAnalyzeText(t *testing.T) {
	env := newTestEnv(t)

	w := env.form(t, "/gemini/analyze", map[string]string{"text": "what is in front of me"}, nil, "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"result":"A cup is in front of you."}`, w.Body.String())
	assert.Equal(t, 1, env.model.calls)
}

func TestAnalyzeImageWithAction(t *testing.T) {
	env := newTestEnv(t)

	w := env.form(t, "/gemini/analyze", map[string]string{"action": "describe"}, []byte("\x89PNG\r\n\x1a\nfake"), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, env.model.parts)
}

func TestAnalyzeRequiresImageOrText(t *testing.T) {
	env := newTestEnv(t)

	w := env.form(t, "/gemini/analyze", map[string]string{"action": "describe"}, nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, w))
	assert.Equal(t, 0, env.model.calls)
}

func TestAnalyzeUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.model.err = errors.New("quota exceeded")

	w := env.form(t, "/gemini/analyze", map[string]string{"text": "hi"}, nil, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.CodeUpstreamModel, errorCode(t, w))
	assert.Contains(t, w.Body.String(), "analysis failed")
}

func TestAnalyzeEmptyGeneration(t *testing.T) {
	env := newTestEnv(t)
	env.model.text = ""

	w := env.form(t, "/gemini/analyze-and-speak", map[string]string{"text": "hi"}, nil, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.CodeGenerationEmpty, errorCode(t, w))
	assert.Empty(t, env.ttsText)
}

func TestAnalyzeAndSpeak(t *testing.T) {
	env := newTestEnv(t)

	w := env.form(t, "/gemini/analyze-and-speak", map[string]string{"text": "where is my cup"}, nil, "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=speech.wav", w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("RIFF")))
	assert.Equal(t, "A cup is in front of you.", env.ttsText)
}

func TestAnalyzeAndSpeakCredentialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.ttsStatus = http.StatusUnauthorized

	w := env.form(t, "/gemini/analyze-and-speak", map[string]string{"text": "hi"}, nil, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.CodeCredential, errorCode(t, w))
	assert.Contains(t, w.Body.String(), "synthesis failed")
}

func TestAnalyzePersonalizedForCaller(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, `{"username":"amy","password":"secret1","vision_level":5,"chronic_diseases":["diabetes"]}`)

	w := env.form(t, "/gemini/analyze", map[string]string{"text": "what snack is this"}, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, env.model.instruction, "amy")
	assert.Contains(t, env.model.instruction, prompt.TraditionalChinese.Health)

	w = env.form(t, "/gemini/analyze", map[string]string{"text": "hi", "system_instruction": "Answer in one word."}, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Answer in one word.", env.model.instruction)
}

func TestSystemPrompt(t *testing.T) {
	env := newTestEnv(t)
	base := prompt.NewComposer("zh-TW").Base()

	tests := []struct {
		name  string
		token func() string
		check func(t *testing.T, got string)
	}{
		{
			name:  "anonymous",
			token: func() string { return "" },
			check: func(t *testing.T, got string) { assert.Equal(t, base, got) },
		},
		{
			name:  "invalid token falls back to anonymous",
			token: func() string { return "not-a-jwt" },
			check: func(t *testing.T, got string) { assert.Equal(t, base, got) },
		},
		{
			name: "personalized",
			token: func() string {
				return env.register(t, `{"username":"bob","password":"secret1","age":70}`)
			},
			check: func(t *testing.T, got string) {
				assert.True(t, strings.HasPrefix(got, base))
				assert.Contains(t, got, "bob")
				assert.Contains(t, got, prompt.TraditionalChinese.Elderly)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/system-prompt", nil)
			if tok := tt.token(); tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			w := env.do(req)
			require.Equal(t, http.StatusOK, w.Code)

			var resp struct {
				SystemPrompt string `json:"system_prompt"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			tt.check(t, resp.SystemPrompt)
		})
	}
}

func TestTTSSynthesize(t *testing.T) {
	env := newTestEnv(t)

	w := env.json(http.MethodPost, "/tts/synthesize", `{"text":"你好"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SynthesizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.True(t, strings.HasPrefix(resp.AudioURL, "data:audio/wav;base64,"))

	audio, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.AudioURL, "data:audio/wav;base64,"))
	require.NoError(t, err)
	assert.True(t, tts.IsWAV(audio))
}

func TestTTSSynthesizeStream(t *testing.T) {
	env := newTestEnv(t)

	w := env.json(http.MethodPost, "/tts/synthesize-stream", `{"text":"hello","language_code":"en-US","voice_name":"en-US-Standard-A"}`, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=synthesized_audio.wav", w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("RIFF")))
}

func TestTTSRejectsMissingText(t *testing.T) {
	env := newTestEnv(t)

	w := env.json(http.MethodPost, "/tts/synthesize", `{"voice_name":"x"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.json(http.MethodPost, "/tts/synthesize", `{"text":"   "}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, w))
}

func TestUserAccountFlow(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, `{"username":"amy","password":"secret1","gender":"female"}`)

	w := env.json(http.MethodPost, "/users/register", `{"username":"amy","password":"secret2"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeUserExists, errorCode(t, w))

	w = env.json(http.MethodPost, "/users/login", `{"username":"amy","password":"wrong12"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.json(http.MethodPost, "/users/login", `{"username":"amy","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret1")

	w = env.json(http.MethodGet, "/users/me", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"amy"`)

	w = env.json(http.MethodPut, "/users/me", `{"vision_level":3,"role":"admin"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"vision_level":3`)
	assert.Contains(t, w.Body.String(), `"role":"user"`)

	w = env.json(http.MethodPut, "/users/me", `{"vision_level":9}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, w))

	w = env.json(http.MethodGet, "/users/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.register(t, `{"username":"amy","password":"secret1"}`)

	created, err := env.users.EnsureAdmin(context.Background(), "root", "rootpass")
	require.NoError(t, err)
	require.True(t, created)
	w := env.json(http.MethodPost, "/users/login", `{"username":"root","password":"rootpass"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	adminToken := login.Token

	w = env.json(http.MethodGet, "/users", "", userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeInsufficientRole, errorCode(t, w))

	w = env.json(http.MethodGet, "/users?skip=0&limit=10", "", adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	w = env.json(http.MethodGet, "/users?limit=abc", "", adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.json(http.MethodPut, "/users/1", `{"role":"admin"}`, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)

	w = env.json(http.MethodGet, "/users/999", "", adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeUserNotFound, errorCode(t, w))

	w = env.json(http.MethodGet, "/users/abc", "", adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.json(http.MethodDelete, "/users/1", "", adminToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.json(http.MethodDelete, "/users/1", "", adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDemotedAdminLosesAccess(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, `{"username":"amy","password":"secret1"}`)

	_, err := env.users.EnsureAdmin(context.Background(), "root", "rootpass")
	require.NoError(t, err)
	login := func(username, password string) string {
		w := env.json(http.MethodPost, "/users/login", `{"username":"`+username+`","password":"`+password+`"}`, "")
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Token
	}
	rootToken := login("root", "rootpass")

	w := env.json(http.MethodPut, "/users/1", `{"role":"admin"}`, rootToken)
	require.Equal(t, http.StatusOK, w.Code)
	amyToken := login("amy", "secret1")
	assert.Equal(t, http.StatusOK, env.json(http.MethodGet, "/users", "", amyToken).Code)

	w = env.json(http.MethodPut, "/users/1", `{"role":"user"}`, rootToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.json(http.MethodGet, "/users", "", amyToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeInsufficientRole, errorCode(t, w))

	w = env.json(http.MethodDelete, "/users/1", "", rootToken)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.json(http.MethodGet, "/users", "", amyToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &service.StageError{Stage: "analysis", Err: analysis.ErrValidation}, http.StatusBadRequest, apperrors.CodeValidation},
		{"configuration", &service.StageError{Stage: "analysis", Err: analysis.ErrConfiguration}, http.StatusInternalServerError, apperrors.CodeConfiguration},
		{"upstream", &analysis.UpstreamModelError{Model: "m", Err: errors.New("boom")}, http.StatusInternalServerError, apperrors.CodeUpstreamModel},
		{"empty speech", &service.StageError{Stage: "analysis", Err: service.ErrEmptySpeech}, http.StatusInternalServerError, apperrors.CodeGenerationEmpty},
		{"credential inside synthesis", &tts.SynthesisError{Attempts: 1, Err: &tts.CredentialError{Err: errors.New("x")}}, http.StatusInternalServerError, apperrors.CodeCredential},
		{"malformed", &tts.MalformedResponseError{Reason: "missing audioContent"}, http.StatusInternalServerError, apperrors.CodeMalformedTTS},
		{"synthesis", &tts.SynthesisError{Attempts: 2, Err: errors.New("503")}, http.StatusInternalServerError, apperrors.CodeSynthesis},
		{"not found", service.ErrUserNotFound, http.StatusNotFound, apperrors.CodeUserNotFound},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toAppError(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
		})
	}

	assert.Equal(t, analysis.ErrValidation.Error(),
		toAppError(&service.StageError{Stage: "analysis", Err: analysis.ErrValidation}).Message)
}
