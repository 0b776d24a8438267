package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"vision-assist/backend/internal/analysis"
	"vision-assist/backend/internal/models"
	"vision-assist/backend/internal/service"
	"vision-assist/backend/internal/tts"
	apperrors "vision-assist/backend/pkg/errors"
)

// toAppError maps domain errors onto the HTTP error categories. Pipeline
// failures keep the full message so the failed stage stays visible.
func toAppError(err error) *apperrors.AppError {
	var (
		appErr    *apperrors.AppError
		upstream  *analysis.UpstreamModelError
		cred      *tts.CredentialError
		malformed *tts.MalformedResponseError
		synth     *tts.SynthesisError
	)

	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, analysis.ErrValidation), errors.Is(err, tts.ErrEmptyText):
		return apperrors.NewBadRequestError(apperrors.CodeValidation, rootMessage(err))
	case errors.Is(err, models.ErrInvalidGender), errors.Is(err, models.ErrInvalidAge),
		errors.Is(err, models.ErrInvalidVisionLevel), errors.Is(err, models.ErrInvalidRole):
		return apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NewNotFoundError(apperrors.CodeUserNotFound, "User not found")
	case errors.Is(err, service.ErrUserAlreadyExists):
		return apperrors.NewConflictError(apperrors.CodeUserExists, "Username already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorizedError(apperrors.CodeInvalidCredentials, "Invalid username or password")
	case errors.Is(err, analysis.ErrConfiguration):
		return apperrors.NewInternalServerError(apperrors.CodeConfiguration, err.Error()).WithCause(err)
	case errors.Is(err, service.ErrEmptySpeech):
		return apperrors.NewInternalServerError(apperrors.CodeGenerationEmpty, err.Error()).WithCause(err)
	case errors.As(err, &upstream):
		return apperrors.NewInternalServerError(apperrors.CodeUpstreamModel, err.Error()).WithCause(err)
	case errors.As(err, &cred):
		return apperrors.NewInternalServerError(apperrors.CodeCredential, err.Error()).WithCause(err)
	case errors.As(err, &malformed):
		return apperrors.NewInternalServerError(apperrors.CodeMalformedTTS, err.Error()).WithCause(err)
	case errors.As(err, &synth):
		return apperrors.NewInternalServerError(apperrors.CodeSynthesis, err.Error()).WithCause(err)
	default:
		return apperrors.NewInternalServerError(apperrors.CodeInternal, "Internal server error").WithCause(err)
	}
}

// rootMessage strips stage prefixes from client-facing validation messages
func rootMessage(err error) string {
	for _, target := range []error{analysis.ErrValidation, tts.ErrEmptyText} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

// abortWith records err for the error handler and stops the chain
func abortWith(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
	c.Abort()
}

func badRequest(c *gin.Context, message string, details any) {
	_ = c.Error(apperrors.BadRequestWithDetails(apperrors.CodeValidation, message, details))
	c.Abort()
}
