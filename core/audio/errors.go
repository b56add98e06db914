package audio

import (
	"errors"
	"fmt"
)

// 业务错误，HTTP 层通过 errors.Is 映射状态码
var (
	ErrBadRequest           = errors.New("bad request")
	ErrNotFound             = errors.New("audio not found")
	ErrBlobMissing          = errors.New("audio file not found")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrRangeNotSatisfiable  = errors.New("range not satisfiable")
)

// RangeError 携带文件大小，用于生成 "Content-Range: bytes */<size>"
type RangeError struct {
	Header string
	Size   int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range %q not satisfiable for size %d", e.Header, e.Size)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrRangeNotSatisfiable
}

// badRequest wraps ErrBadRequest with a client-facing message.
func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, msg)
}
