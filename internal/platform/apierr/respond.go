package apierr

import (
	"errors"

	"github.com/gin-gonic/gin"
)

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func Body(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

// Respond writes err as a JSON error response.
func Respond(c *gin.Context, err error) {
	var api *APIError
	if !errors.As(err, &api) {
		api = Internal("unexpected error", err)
	}
	c.JSON(ToHTTPStatus(api), Body(api.Code, api.Message))
}
