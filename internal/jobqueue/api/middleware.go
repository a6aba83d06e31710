package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

const (
	TraceIDHeader = "X-Trace-ID"
	TraceIDKey    = "trace_id"
	LoggerKey     = "logger"
)

// HTTPObserver records one served request.
type HTTPObserver interface {
	ObserveHTTP(method, endpoint string, status int, elapsed time.Duration)
}

// RecoveryMiddleware turns a handler panic into a 500 response.
func RecoveryMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorf("Panic recovered: %v\nStack trace: %s", err, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// TraceMiddleware reuses the caller's X-Trace-ID or generates one, and stores
// a logger tagged with it in the context.
func TraceMiddleware(baseLogger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(TraceIDKey, traceID)
		c.Set(LoggerKey, baseLogger.With(TraceIDKey, traceID))
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		GetLogger(c).Debugf("HTTP Request: %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func MetricsMiddleware(observer HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		observer.ObserveHTTP(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// GetLogger retrieves the traced logger from the Gin context
func GetLogger(c *gin.Context) logging.Logger {
	logger, exists := c.Get(LoggerKey)
	if !exists {
		return logging.NewNoOpLogger()
	}
	return logger.(logging.Logger)
}

func GetTraceID(c *gin.Context) string {
	traceID, exists := c.Get(TraceIDKey)
	if !exists {
		return ""
	}
	return traceID.(string)
}
