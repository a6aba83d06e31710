package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
)

// statusFor maps the queue error taxonomy to HTTP codes. Unclassified errors
// get fallback.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, jobqueue.ErrInvalidQueueName), errors.Is(err, jobqueue.ErrUnknownFunction):
		return http.StatusBadRequest
	case errors.Is(err, jobqueue.ErrJobNotFound), errors.Is(err, jobqueue.ErrWorkerNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobqueue.ErrInvalidJobState):
		return http.StatusConflict
	case errors.Is(err, jobqueue.ErrBrokerUnavailable), errors.Is(err, jobqueue.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return fallback
	}
}

func respondError(c *gin.Context, err error, fallback int) {
	code := statusFor(err, fallback)
	if code >= http.StatusInternalServerError {
		GetLogger(c).Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	} else {
		GetLogger(c).Debugf("%s %s rejected: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
