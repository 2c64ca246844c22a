package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout/internal/apperr"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError sends an error response with the status code of the error's kind.
func respondError(c *gin.Context, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	_ = c.Error(err)
	c.JSON(code, ErrorResponse{Error: err.Error(), Code: apperr.Kind(err)})
}

// respondBindError reports a request body that could not be decoded.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: "invalid request body: " + err.Error(),
		Code:  apperr.Kind(apperr.ErrValidation),
	})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}
