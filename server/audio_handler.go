package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"audiovault/core/audio"
	"audiovault/logger"
	"audiovault/model"

	"github.com/gorilla/mux"
)

const (
	uploadFormField = "audio"
	// multipart 解析时在内存中保留的上限，超出部分落盘
	multipartMemory = 32 << 20
	// 表单字段和 multipart 边界的额外余量
	multipartOverhead = 1 << 20
)

// UploadAudioHandler 处理音频上传，multipart 字段: audio, description, category
func (h *APIHandler) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentity(r.Context())

	if limit := h.uploader.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := audio.UploadInput{
		Size:        -1,
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}

	file, header, err := r.FormFile(uploadFormField)
	switch {
	case err == nil:
		defer file.Close()
		in.File = file
		in.Filename = header.Filename
		in.ContentType = header.Header.Get("Content-Type")
		in.Size = header.Size
	case errors.Is(err, http.ErrMissingFile):
		// in.File 为 nil，由 Uploader 返回 400
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid file field")
		return
	}

	created, err := h.uploader.Upload(r.Context(), identity, in)
	if err != nil {
		respondError(w, r, "[Upload]", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListAudioHandler 列出当前用户的全部音频
func (h *APIHandler) ListAudioHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentity(r.Context())

	audios, err := h.library.List(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, "[Audio]", err)
		return
	}

	items := make([]model.AudioListItem, 0, len(audios))
	for _, a := range audios {
		items = append(items, a.ToListItem())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username": identity.Username,
		"audios":   items,
	})
}

// GetAudioHandler 获取单条音频记录
func (h *APIHandler) GetAudioHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentity(r.Context())

	a, err := h.library.Get(r.Context(), identity.UserID, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, "[Audio]", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAudioHandler 修改描述和分类
func (h *APIHandler) UpdateAudioHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentity(r.Context())

	var req model.AudioUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body")
		return
	}

	updated, err := h.library.Update(r.Context(), identity.UserID, mux.Vars(r)["id"], req)
	if err != nil {
		respondError(w, r, "[Audio]", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAudioHandler 删除记录和对应的 blob
func (h *APIHandler) DeleteAudioHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentity(r.Context())
	id := mux.Vars(r)["id"]

	if err := h.library.Delete(r.Context(), identity.UserID, id); err != nil {
		respondError(w, r, "[Audio]", err)
		return
	}

	logger.Debug("[Audio] 删除请求完成", logger.Owner(identity.UserID), logger.AudioID(id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Audio deleted successfully"})
}
