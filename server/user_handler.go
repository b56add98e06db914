package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"audiovault/core/auth"
	"audiovault/logger"
)

// UserDetailsHandler 返回当前用户的用户名和邮箱
func (h *APIHandler) UserDetailsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
		return
	}

	user, err := h.userRepo.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, "[User]", err)
		return
	}
	if user == nil {
		// 令牌有效但账号已不存在
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"username": user.Username,
		"email":    user.Email,
	})
}

// 允许通过 PUT /api/user 修改的字段
var updatableUserFields = map[string]bool{
	"username": true,
	"email":    true,
	"password": true,
}

// UpdateUserHandler 修改当前用户的用户名、邮箱或密码，出现其它字段时整体拒绝
func (h *APIHandler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid updates!")
		return
	}
	values := make(map[string]string, len(fields))
	for key, raw := range fields {
		var v string
		if !updatableUserFields[key] || json.Unmarshal(raw, &v) != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid updates!")
			return
		}
		values[key] = v
	}

	user, err := h.userRepo.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, "[User]", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
		return
	}

	if v, ok := values["username"]; ok {
		v = strings.TrimSpace(v)
		if v == "" || strings.Contains(v, "@") {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid username")
			return
		}
		user.Username = v
	}
	if v, ok := values["email"]; ok {
		v = strings.ToLower(strings.TrimSpace(v))
		if !strings.Contains(v, "@") {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid email address")
			return
		}
		user.Email = v
	}
	if v, ok := values["password"]; ok {
		if msg := passwordProblem(v); msg != "" {
			writeError(w, http.StatusBadRequest, CodeBadRequest, msg)
			return
		}
		hash, err := auth.HashPassword(v)
		if err != nil {
			respondError(w, r, "[User]", err)
			return
		}
		user.PasswordHash = hash
	}

	if err := h.userRepo.UpdateUser(r.Context(), user); err != nil {
		respondError(w, r, "[User]", err)
		return
	}

	logger.Info("[User] 更新账号信息", logger.Owner(user.ID))
	writeJSON(w, http.StatusOK, user)
}

// DeleteUserHandler 删除当前账号：先删全部音频（blob 尽力而为），再删用户并注销当前令牌
func (h *APIHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
		return
	}

	removed, err := h.library.DeleteAllForUser(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, r, "[User]", err)
		return
	}
	found, err := h.userRepo.DeleteUser(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, r, "[User]", err)
		return
	}
	if !found {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
		return
	}
	if err := h.verifier.Revoke(r.Context(), claims); err != nil {
		// 账号已删除，注销失败不影响结果
		logger.Warn("[User] 注销令牌失败", logger.Owner(claims.UserID), logger.ErrorField(err))
	}

	logger.Info("[User] 删除账号", logger.Owner(claims.UserID), logger.Int("audios", removed))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}
