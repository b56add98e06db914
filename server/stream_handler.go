package server

import (
	"io"
	"net/http"
	"strconv"

	"audiovault/logger"

	"github.com/gorilla/mux"
)

const streamBufferSize = 32 << 10

// StreamAudioHandler serves the caller's audio with single-range support.
// HEAD returns the same headers without a body.
func (h *APIHandler) StreamAudioHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentity(r.Context())
	id := mux.Vars(r)["id"]

	st, err := h.library.OpenStream(r.Context(), identity.UserID, id, r.Header.Get("Range"))
	if err != nil {
		respondError(w, r, "[Stream]", err)
		return
	}
	defer st.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", st.Audio.MimeType)
	hdr.Set("Content-Length", strconv.FormatInt(st.Length(), 10))
	hdr.Set("Accept-Ranges", "bytes")

	status := http.StatusOK
	if st.Partial {
		hdr.Set("Content-Range", st.ContentRange())
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}

	buf := make([]byte, streamBufferSize)
	n, err := io.CopyBuffer(w, st.Body, buf)
	if err != nil {
		// 客户端断开或 blob 读取失败，Content-Length 不满足时连接会被关闭
		logger.Warn("[Stream] 传输中断",
			logger.Owner(identity.UserID),
			logger.AudioID(id),
			logger.Int64("sent", n),
			logger.Int64("expected", st.Length()),
			logger.ErrorField(err))
		return
	}
	if n != st.Length() {
		logger.Warn("[Stream] blob 在传输期间发生变化",
			logger.Owner(identity.UserID),
			logger.AudioID(id),
			logger.Int64("sent", n),
			logger.Int64("expected", st.Length()))
	}
}
