package audio

import (
	"context"
	"fmt"
	"io"

	"audiovault/model"
)

// Stream 一次流式读取的结果，调用方必须 Close
type Stream struct {
	Audio   *model.Audio
	Size    int64 // blob 总大小
	Range   ByteRange
	Partial bool // true 时响应 206
	Body    io.ReadCloser
}

// Length 本次响应的字节数
func (s *Stream) Length() int64 {
	return s.Range.Length()
}

// ContentRange 206 响应的 Content-Range 头
func (s *Stream) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", s.Range.Start, s.Range.End, s.Size)
}

// Close 释放底层文件句柄或对象流
func (s *Stream) Close() error {
	if s.Body == nil {
		return nil
	}
	return s.Body.Close()
}

// OpenStream resolves the record for userID, checks the blob, computes the
// byte window from rangeHeader and opens a reader over exactly that window.
// Size and existence are re-read from the Blob Store on every call.
func (l *Library) OpenStream(ctx context.Context, userID int64, id, rangeHeader string) (*Stream, error) {
	audio, err := l.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	exists, err := l.blobs.Exists(ctx, audio.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("check blob %s: %w", audio.StorageKey, err)
	}
	if !exists {
		return nil, blobMissing(audio)
	}

	size, err := l.blobs.Size(ctx, audio.StorageKey)
	if err != nil {
		if isBlobNotFound(err) {
			return nil, blobMissing(audio)
		}
		return nil, fmt.Errorf("stat blob %s: %w", audio.StorageKey, err)
	}

	st := &Stream{Audio: audio, Size: size, Range: ByteRange{Start: 0, End: size - 1}}
	if rangeHeader != "" {
		br, err := ParseRange(rangeHeader, size)
		if err != nil {
			return nil, err
		}
		st.Range = br
		st.Partial = true
	}

	length := int64(-1)
	if st.Partial {
		length = st.Range.Length()
	}
	body, err := l.blobs.Get(ctx, audio.StorageKey, st.Range.Start, length)
	if err != nil {
		if isBlobNotFound(err) {
			return nil, blobMissing(audio)
		}
		return nil, fmt.Errorf("open blob %s: %w", audio.StorageKey, err)
	}
	st.Body = body
	return st, nil
}
