// internal/api/middleware.go
package api

import (
	"errors"
	"time"

	apperrors "career-predictor/internal/common/errors"
	"career-predictor/internal/common/logger"
	"career-predictor/internal/common/metrics"
	"career-predictor/internal/common/validation"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const (
	HeaderRequestID    = "X-Request-ID"
	localsRequestIDKey = "requestId"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      string                       `json:"code"`
	Message   string                       `json:"message"`
	Details   string                       `json:"details,omitempty"`
	Metadata  map[string]interface{}       `json:"metadata,omitempty"`
	Errors    []validation.ValidationError `json:"errors,omitempty"`
	RequestID string                       `json:"requestId,omitempty"`
}

// inputError carries per-field validation failures alongside the standard error.
type inputError struct {
	*apperrors.StandardError
	fields []validation.ValidationError
}

func (e *inputError) Unwrap() error { return e.StandardError }

func newInputError(fields []validation.ValidationError) *inputError {
	details := ""
	if len(fields) > 0 {
		details = fields[0].Field + ": " + fields[0].Message
	}
	return &inputError{
		StandardError: apperrors.NewInvalidInputError(details),
		fields:        fields,
	}
}

func requestID(c fiber.Ctx) string {
	rid, _ := c.Locals(localsRequestIDKey).(string)
	return rid
}

// accessLog assigns a request id and logs one line per request.
func accessLog(log logger.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		metrics.HTTPRequestsActive.Inc()
		defer metrics.HTTPRequestsActive.Dec()

		rid := c.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(HeaderRequestID, rid)
		c.Locals(localsRequestIDKey, rid)

		err := c.Next()

		log.Info("http access", map[string]interface{}{
			"rid":        rid,
			"ip":         c.IP(),
			"method":     c.Method(),
			"path":       c.OriginalURL(),
			"status":     c.Response().StatusCode(),
			"latency_ms": time.Since(start).Milliseconds(),
			"req_bytes":  c.Request().Header.ContentLength(),
			"resp_bytes": len(c.Response().Body()),
			"ua":         c.Get("User-Agent"),
		})

		return err
	}
}

// errorHandler renders handler errors and recovers panics.
func errorHandler(log logger.Logger) fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", map[string]interface{}{
					"rid":   requestID(c),
					"panic": r,
				})
				err = writeError(c, apperrors.Normalize(errors.New("internal server error")), nil)
			}
		}()

		err = c.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Code:      httpCode(fiberErr.Code),
				Message:   fiberErr.Message,
				RequestID: requestID(c),
			})
		}

		var inErr *inputError
		if errors.As(err, &inErr) {
			return writeError(c, inErr.StandardError, inErr.fields)
		}

		stdErr := apperrors.Normalize(unwrapStandard(err))
		if apperrors.HTTPStatus(stdErr.Code) >= fiber.StatusInternalServerError {
			log.Error("request failed", map[string]interface{}{
				"rid":       requestID(c),
				"errorCode": string(stdErr.Code),
				"details":   stdErr.Details,
			})
		}
		return writeError(c, stdErr, nil)
	}
}

func unwrapStandard(err error) error {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return err
}

func writeError(c fiber.Ctx, stdErr *apperrors.StandardError, fields []validation.ValidationError) error {
	return c.Status(apperrors.HTTPStatus(stdErr.Code)).JSON(ErrorResponse{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Metadata:  stdErr.Metadata,
		Errors:    fields,
		RequestID: requestID(c),
	})
}

func httpCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "BODY_TOO_LARGE"
	case fiber.StatusBadRequest:
		return string(apperrors.ErrCodeMalformedBody)
	default:
		return string(apperrors.ErrCodeInternal)
	}
}
