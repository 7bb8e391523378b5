package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"
)

type contextKey string

const LoggerKey contextKey = "requestLogger"

// GetLogger extracts the request-scoped logger from the request context,
// falling back to the global logger.
func GetLogger(r *http.Request) *zap.Logger {
	if r != nil {
		if val, ok := r.Context().Value(LoggerKey).(*zap.Logger); ok {
			return val
		}
	}
	return zap.L()
}

func requestLogger(e *core.RequestEvent) *zap.Logger {
	if e == nil {
		return zap.L()
	}
	return GetLogger(e.Request)
}

// RequestLoggerMiddleware tags every request with an id, stores a logger
// carrying it in the request context and logs the outcome once the handler
// chain returns.
func RequestLoggerMiddleware(logger *zap.Logger) func(e *core.RequestEvent) error {
	if logger == nil {
		logger = zap.L()
	}
	return func(e *core.RequestEvent) error {
		requestID := e.Request.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		e.Response.Header().Set("X-Request-Id", requestID)

		reqLog := logger.With(
			zap.String("request_id", requestID),
			zap.String("method", e.Request.Method),
			zap.String("path", e.Request.URL.Path),
		)
		ctx := context.WithValue(e.Request.Context(), LoggerKey, reqLog)
		e.Request = e.Request.WithContext(ctx)

		start := time.Now()
		err := e.Next()

		fields := []zap.Field{zap.Duration("duration", time.Since(start))}
		if err != nil {
			reqLog.Warn("request failed", append(fields, zap.Error(err))...)
		} else {
			reqLog.Debug("request handled", fields...)
		}
		return err
	}
}
