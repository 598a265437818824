package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pickit-backend/service"
)

// ErrorResponse API错误响应
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// SuccessResponse API成功响应
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// statusFor 错误类别到 HTTP 状态码
func statusFor(e *service.Error) int {
	switch e.Kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindClosed:
		return http.StatusForbidden
	case service.KindDuplicate:
		return http.StatusConflict
	case service.KindUnauthorized:
		if e.Reason == service.ErrForbidden.Reason {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

// RespondError 把服务层错误写成统一的错误响应
func RespondError(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		e = &service.Error{Kind: service.KindTransient, Reason: service.ErrUnavailable.Reason, Message: service.ErrUnavailable.Message, Err: err}
	}

	status := statusFor(e)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Str("reason", e.Reason).Msg("请求处理失败")
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:  e.Message,
		Kind:   string(e.Kind),
		Reason: e.Reason,
	})
}

// badRequest 请求体格式错误
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:  "invalid request: " + err.Error(),
		Kind:   string(service.KindValidation),
		Reason: "invalid_request",
	})
}
