package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/insightflow-backend/internal/pkg/apierr"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// DataEnvelope wraps every successful procedure result.
type DataEnvelope struct {
	Data any `json:"data"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError maps err to its status and public message. Server-side
// failures are logged with their full cause.
func RespondAPIError(c *gin.Context, log *logger.Logger, err error) {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.Internal(nil)
	}
	if ae.Status >= 500 && log != nil {
		log.Error("Request failed", "path", c.Request.URL.Path, "code", ae.Code, "error", err)
	}
	c.AbortWithStatusJSON(ae.Status, ErrorEnvelope{
		Error: APIError{
			Message: ae.PublicMessage(),
			Code:    ae.Code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataEnvelope{Data: data})
}
