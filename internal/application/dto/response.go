package dto

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ccs/pkg/constants"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
)

// SendError writes a structured error response. Internal detail stays out of
// the body; the request id lets operators correlate logs.
func SendError(c *gin.Context, err error) {
	requestID, _ := c.Get(string(constants.ContextKeyRequestID))

	status := http.StatusInternalServerError
	resp := ccserrors.ToGenericErrorResponse(err)
	if ccsErr, ok := ccserrors.AsCCSError(err); ok {
		status = ccsErr.HTTPStatus()
		if status == http.StatusTooManyRequests {
			if v, ok := ccsErr.Metadata()["retry_after_seconds"]; ok {
				if secs, ok := v.(int); ok && secs > 0 {
					c.Header("Retry-After", strconv.Itoa(secs))
				}
			}
		}
		// Metadata is operator context, not client payload.
		resp.Metadata = nil
	}
	if id, ok := requestID.(string); ok {
		resp.RequestID = id
	}

	if status >= http.StatusInternalServerError {
		logger.GetGlobalLogger().Error(c.Request.Context(), "request failed", err,
			logger.String("path", c.FullPath()),
			logger.Int("status", status),
		)
	}

	c.JSON(status, resp)
}

// SendSuccess writes a 200 with the given body.
func SendSuccess(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}

// SetRateLimitHeaders exposes the gate budget on every gated response.
func SetRateLimitHeaders(c *gin.Context, limit, remaining int) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
}
