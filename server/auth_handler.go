package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"audiovault/core/auth"
	"audiovault/logger"
	"audiovault/model"
	"audiovault/repository"
)

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Login    string `json:"login"` // 用户名或邮箱
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

const (
	minPasswordLen = 6
	// bcrypt 只接受 72 字节以内的密码
	maxPasswordLen = 72
)

func passwordProblem(pw string) string {
	switch {
	case len(pw) < minPasswordLen:
		return "Password must be at least 6 characters"
	case len(pw) > maxPasswordLen:
		return "Password must be at most 72 bytes"
	}
	return ""
}

func (req *RegisterRequest) validate() string {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case req.Username == "" || req.Email == "" || req.Password == "":
		return "Username, email and password are required"
	case strings.Contains(req.Username, "@"):
		return "Username must not contain '@'"
	case !strings.Contains(req.Email, "@"):
		return "Invalid email address"
	}
	return passwordProblem(req.Password)
}

// RegisterHandler handles user registration requests
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, msg)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, r, "[Register]", err)
		return
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}
	if err := h.userRepo.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			logger.Warn("[Register] 用户名或邮箱已存在",
				logger.String("username", req.Username),
				logger.String("email", req.Email))
		}
		respondError(w, r, "[Register]", err)
		return
	}

	token, _, err := h.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		respondError(w, r, "[Register]", err)
		return
	}

	logger.Info("[Register] 注册成功", logger.Owner(user.ID), logger.String("username", user.Username))
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// LoginHandler handles user login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body")
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Username/Email and password are required")
		return
	}

	// 支持用户名或邮箱登录
	var user *model.User
	var err error
	if strings.Contains(req.Login, "@") {
		user, err = h.userRepo.GetUserByEmail(r.Context(), strings.ToLower(req.Login))
	} else {
		user, err = h.userRepo.GetUserByUsername(r.Context(), req.Login)
	}
	if err != nil {
		respondError(w, r, "[Login]", err)
		return
	}

	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		logger.Warn("[Login] 用户名或密码错误", logger.String("login", req.Login))
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid login credentials")
		return
	}

	token, _, err := h.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		respondError(w, r, "[Login]", err)
		return
	}

	logger.Info("[Login] 登录成功", logger.Owner(user.ID))
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// LogoutHandler 注销当前令牌
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
		return
	}
	if err := h.verifier.Revoke(r.Context(), claims); err != nil {
		respondError(w, r, "[Logout]", err)
		return
	}

	logger.Info("[Logout] 令牌已注销", logger.Owner(claims.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
