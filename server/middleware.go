package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"audiovault/core/auth"
	"audiovault/logger"
	"audiovault/model"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	claimsKey
)

// withIdentity 把已验证的调用者放进请求上下文
func withIdentity(ctx context.Context, claims auth.Claims) context.Context {
	ctx = context.WithValue(ctx, identityKey, model.Identity{UserID: claims.UserID, Username: claims.Username})
	return context.WithValue(ctx, claimsKey, claims)
}

// GetIdentity returns the caller set by AuthMiddleware.
func GetIdentity(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}

func getClaims(ctx context.Context) (auth.Claims, bool) {
	cl, ok := ctx.Value(claimsKey).(auth.Claims)
	return cl, ok
}

// bearerToken 解析 "Authorization: Bearer <token>"
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware rejects requests without a valid, unrevoked bearer token
// before the handler runs.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Authorization header is required")
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenRevoked) {
				logger.Debug("[Auth] 令牌校验失败", logger.ErrorField(err))
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid token")
				return
			}
			respondError(w, r, "[Auth]", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims)))
	}
}

// corsMiddleware 允许跨域播放，暴露区间请求相关的响应头
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder 记录状态码和写出的字节数
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += int64(n)
	return n, err
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// requestLogger 每个请求一条访问日志
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		logger.Info("[HTTP] 请求完成",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Int64("bytes", rec.bytes),
			logger.Duration("duration", time.Since(start)))
	})
}
