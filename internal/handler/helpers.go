// internal/handler/helpers.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"terminal-service/internal/model"
	"terminal-service/internal/utils"
)

// respondError writes a classified failure response when the error carries
// one, falling back to a generic 500 otherwise
func respondError(c *gin.Context, message string, err error) {
	var f *model.Failure
	if errors.As(err, &f) {
		utils.FailureResponse(c, f)
		return
	}
	utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
}
