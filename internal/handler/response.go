package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"Idea_Portal/internal/middleware"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/service"
)

// statusFor 错误码到 HTTP 状态的唯一映射
func statusFor(err error) int {
	switch pkg.ErrorCode(err) {
	case "validation_error":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "already_voted", "not_voted", "already_used", "invalid_transition", "email_taken":
		return http.StatusConflict
	case "expired":
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}

func writeError(c *gin.Context, err error) {
	code := pkg.ErrorCode(err)
	msg := err.Error()
	var ve *pkg.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Reason
	}
	if code == "upstream_error" {
		// 不把内部错误细节返回给调用方
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
		msg = "upstream service unavailable"
	}
	c.JSON(statusFor(err), gin.H{"code": code, "msg": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "msg": msg})
}

func viewer(c *gin.Context) service.Viewer {
	return middleware.ViewerFrom(c)
}
