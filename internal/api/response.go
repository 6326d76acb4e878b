package api

import (
	"errors"
	"net/http"

	"storefront/internal/apperr"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func respondFailure(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

// respondError renders err as a failure envelope. Classified errors keep
// their status and message; Postgres constraint errors are mapped; anything
// else is a 500. The underlying error text is only exposed outside production.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var (
		appErr *apperr.Error
		pqErr  *pq.Error
	)
	switch {
	case errors.As(err, &appErr):
		status = appErr.HTTPStatus()
		if appErr.Kind != apperr.KindInternal {
			message = appErr.Message
		}
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		status = http.StatusConflict
		message = "record already exists"
	case errors.As(err, &pqErr) && pqErr.Code == "23503":
		status = http.StatusBadRequest
		message = "referenced record does not exist"
	}

	logger := util.LoggerFromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	} else {
		logger.Debug("Request rejected",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}

	body := envelope{Success: false, Message: message}
	if !h.production {
		body.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
