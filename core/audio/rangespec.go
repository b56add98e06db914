package audio

import (
	"strconv"
	"strings"
)

// ByteRange 闭区间 [Start, End]
type ByteRange struct {
	Start int64
	End   int64
}

// Length 区间字节数
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ParseRange parses a single "bytes=<start>-<end>" range against size.
// start is required; a missing end means size-1 and an end past the file is
// clamped to size-1. Suffix ranges and multiple ranges are rejected.
func ParseRange(header string, size int64) (ByteRange, error) {
	fail := &RangeError{Header: header, Size: size}

	h := strings.TrimSpace(header)
	const unit = "bytes="
	if len(h) < len(unit) || !strings.EqualFold(h[:len(unit)], unit) {
		return ByteRange{}, fail
	}
	set := strings.TrimSpace(h[len(unit):])
	if strings.Contains(set, ",") {
		return ByteRange{}, fail
	}

	startStr, endStr, ok := strings.Cut(set, "-")
	if !ok {
		return ByteRange{}, fail
	}
	start, ok := parseOffset(strings.TrimSpace(startStr))
	if !ok {
		return ByteRange{}, fail
	}

	end := size - 1
	if endStr = strings.TrimSpace(endStr); endStr != "" {
		if end, ok = parseOffset(endStr); !ok {
			return ByteRange{}, fail
		}
	}

	if start > end || start >= size {
		return ByteRange{}, fail
	}
	if end >= size {
		end = size - 1
	}
	return ByteRange{Start: start, End: end}, nil
}

// parseOffset 只接受纯数字，拒绝 "+1"、"-1"、空串
func parseOffset(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
