package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"audiovault/core/audio"
	"audiovault/logger"
	"audiovault/repository"
)

// 错误码，响应格式统一为 {"error": {"code": "...", "message": "..."}}
const (
	CodeBadRequest           = "BAD_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodeRangeNotSatisfiable  = "RANGE_NOT_SATISFIABLE"
	CodeInternalError        = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("[HTTP] 编码响应失败", logger.ErrorField(err))
	}
}

// writeError 所有错误响应都走这里
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// clientMessage 去掉 sentinel 前缀，只保留面向客户端的说明
func clientMessage(err error, sentinel error, fallback string) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return fallback
}

// respondError maps a service error to its HTTP status and error code.
// Anything unrecognised is logged and answered with a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, tag string, err error) {
	var rangeErr *audio.RangeError
	switch {
	case errors.As(err, &rangeErr):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", rangeErr.Size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, CodeRangeNotSatisfiable, "Requested range not satisfiable")
	case errors.Is(err, audio.ErrBadRequest):
		writeError(w, http.StatusBadRequest, CodeBadRequest, clientMessage(err, audio.ErrBadRequest, "Bad request"))
	case errors.Is(err, audio.ErrBlobMissing):
		writeError(w, http.StatusNotFound, CodeNotFound, "Audio file not found")
	case errors.Is(err, audio.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "Audio not found")
	case errors.Is(err, repository.ErrDuplicateUser):
		writeError(w, http.StatusConflict, CodeConflict, "Username or email already exists")
	case errors.Is(err, audio.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "File too large")
	case errors.Is(err, audio.ErrUnsupportedMediaType):
		writeError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "Unsupported audio type")
	default:
		logger.Error(tag+" 请求处理失败",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Server error")
	}
}
