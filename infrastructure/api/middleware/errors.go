package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yksoni-monk/poke"
	"github.com/yksoni-monk/poke/application/service"
	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/domain/match"
	"github.com/yksoni-monk/poke/infrastructure/api/jsonapi"
	"github.com/yksoni-monk/poke/infrastructure/provider"
	"github.com/yksoni-monk/poke/internal/database"
	"github.com/yksoni-monk/poke/internal/log"
)

// Base API errors as sentinels.
var (
	// ErrAuthentication indicates authentication failure.
	ErrAuthentication = errors.New("authentication failed")
)

// APIError is an error with an explicit HTTP status.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates a new APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{
		code:    code,
		message: message,
		cause:   cause,
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.cause
}

// Code returns the HTTP status code.
func (e *APIError) Code() int {
	return e.code
}

// Message returns the error message.
func (e *APIError) Message() string {
	return e.message
}

// AuthenticationError represents an authentication failure.
type AuthenticationError struct {
	message string
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(message string) *AuthenticationError {
	return &AuthenticationError{message: message}
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.message)
}

// Unwrap returns the base authentication error for errors.Is compatibility.
func (e *AuthenticationError) Unwrap() error {
	return ErrAuthentication
}

// Status maps an error to an HTTP status code and title.
func Status(err error) (int, string) {
	var (
		apiErr   *APIError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code(), http.StatusText(apiErr.Code())
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized, "Authentication Failed"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "Image Too Large"
	case errors.Is(err, embedding.ErrInvalidImage),
		errors.Is(err, service.ErrInvalidSource),
		errors.Is(err, catalog.ErrInvalidCard):
		return http.StatusBadRequest, "Invalid Input"
	case errors.Is(err, catalog.ErrCardNotFound),
		errors.Is(err, service.ErrNoMatch),
		errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, embedding.ErrInvalidEmbedding),
		errors.Is(err, match.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity, "Invalid Embedding"
	case errors.Is(err, catalog.ErrIndexNotFound),
		errors.Is(err, catalog.ErrIndexCorrupt),
		errors.Is(err, poke.ErrNoDatabase):
		return http.StatusServiceUnavailable, "Service Unavailable"
	case errors.Is(err, provider.ErrEncoder),
		errors.Is(err, provider.ErrFetch):
		return http.StatusBadGateway, "Upstream Error"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// WriteError writes a JSON:API error document for err. Server-side failures
// are logged at error level, client mistakes at debug.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status, title := Status(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "an unexpected error occurred"
	}

	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request error",
		slog.Int("status", status),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)

	apiErr := jsonapi.NewError(strconv.Itoa(status), title, detail)
	apiErr.ID = log.CorrelationID(r.Context())

	w.Header().Set("Content-Type", jsonapi.MediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonapi.NewErrorResponse(apiErr))
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteDocument writes a JSON:API document.
func WriteDocument(w http.ResponseWriter, status int, doc *jsonapi.Document) {
	w.Header().Set("Content-Type", jsonapi.MediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}
