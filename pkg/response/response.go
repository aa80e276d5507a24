// Package response writes the ledger API's JSON envelopes.
package response

import (
	"errors"
	"net/http"
	"time"

	"personal-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

const (
	headerRequestID  = "X-Request-ID"
	headerRetryAfter = "Retry-After"
	// retryAfterSeconds is advertised on 503s: lock timeouts and an open gateway breaker clear quickly.
	retryAfterSeconds = "1"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

// Created sends a 201 response with data. Transfers and recharges answer with it.
func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

// NoContent sends a bodiless 204 that still carries the request id header.
func NoContent(c *gin.Context) {
	c.Header(headerRequestID, requestID(c))
	c.Status(http.StatusNoContent)
}

// Error sends an error response. An *apperror.AppError anywhere in the chain
// decides code and status; anything else is a 500 SYS_000.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.New("SYS_000", "Internal server error", http.StatusInternalServerError)
	}

	if appErr.HTTPStatus == http.StatusServiceUnavailable && c.Writer.Header().Get(headerRetryAfter) == "" {
		c.Header(headerRetryAfter, retryAfterSeconds)
	}

	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

// requestID returns the id set by the request id middleware. Without one, a
// fresh id is stored on the context so every write of this request agrees.
func requestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
	}
	id := uuid.New().String()
	c.Set(RequestIDKey, id)
	c.Header(headerRequestID, id)
	return id
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
