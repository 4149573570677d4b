package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeOf(err),
		Message: http.StatusText(status),
	})
}

// requireCaller reads the identity JWTAuth stored on the context. The
// "admin" application role makes the caller privileged.
func requireCaller(c *gin.Context) (models.Caller, bool) {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(string); ok && id != "" {
			role, _ := c.Get("role")
			r, _ := role.(string)
			return models.Caller{
				ID:         id,
				Privileged: strings.EqualFold(strings.TrimSpace(r), "admin"),
			}, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return models.Caller{}, false
}
