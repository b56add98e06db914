package server

import (
	"net/http"

	"audiovault/core/audio"
	"audiovault/core/auth"
	"audiovault/repository"

	"github.com/gorilla/mux"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	userRepo repository.UserRepository
	library  *audio.Library
	uploader *audio.Uploader
	tokens   *auth.TokenManager
	verifier *auth.Verifier
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	userRepo repository.UserRepository,
	library *audio.Library,
	uploader *audio.Uploader,
	tokens *auth.TokenManager,
	verifier *auth.Verifier,
) *APIHandler {
	return &APIHandler{
		userRepo: userRepo,
		library:  library,
		uploader: uploader,
		tokens:   tokens,
		verifier: verifier,
	}
}

// NewRouter 注册全部路由
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger, corsMiddleware)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found")
	})

	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.AuthMiddleware(h.LogoutHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/user/details", h.AuthMiddleware(h.UserDetailsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/user", h.AuthMiddleware(h.UpdateUserHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/user", h.AuthMiddleware(h.DeleteUserHandler)).Methods(http.MethodDelete)

	// 音频相关的API端点；固定路径要在 {id} 之前注册
	router.HandleFunc("/api/audio/upload", h.AuthMiddleware(h.UploadAudioHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/audio/list", h.AuthMiddleware(h.ListAudioHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/audio/stream/{id}", h.AuthMiddleware(h.StreamAudioHandler)).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/audio/{id}", h.AuthMiddleware(h.GetAudioHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/audio/{id}", h.AuthMiddleware(h.UpdateAudioHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/audio/{id}", h.AuthMiddleware(h.DeleteAudioHandler)).Methods(http.MethodDelete)

	// 预检请求，由 corsMiddleware 直接应答
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	return router
}

// HealthHandler 存活检查
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
