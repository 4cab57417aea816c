package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Error string `json:"error"`
}

func errorResponse(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, APIError{Error: message})
}

func badRequest(ctx *gin.Context, message string) {
	errorResponse(ctx, http.StatusBadRequest, message)
}

func badGateway(ctx *gin.Context, message string) {
	errorResponse(ctx, http.StatusBadGateway, message)
}
