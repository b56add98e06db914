package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers malformed, badly signed and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned for tokens revoked by logout.
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims 验证通过后的令牌信息
type Claims struct {
	TokenID   string
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

type jwtClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager 签发和解析 HS256 JWT
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. secret must not be empty.
func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %v", ttl)
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// GenerateToken 为用户签发令牌
func (m *TokenManager) GenerateToken(userID int64, username string) (string, Claims, error) {
	now := m.now()
	jti := uuid.NewString()
	cl := jwtClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(m.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, Claims{
		TokenID:   jti,
		UserID:    userID,
		Username:  username,
		ExpiresAt: cl.ExpiresAt.Time,
	}, nil
}

// ParseToken 校验签名、签发者和有效期
func (m *TokenManager) ParseToken(raw string) (Claims, error) {
	var cl jwtClaims
	_, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(cl.Subject, 10, 64)
	if err != nil || userID <= 0 || cl.ID == "" {
		return Claims{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return Claims{
		TokenID:   cl.ID,
		UserID:    userID,
		Username:  cl.Username,
		ExpiresAt: cl.ExpiresAt.Time,
	}, nil
}

// RevocationStore 记录已注销的令牌
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Verifier resolves a bearer credential to a verified identity.
type Verifier struct {
	tokens  *TokenManager
	revoked RevocationStore
}

// NewVerifier creates a Verifier. revoked may be nil to disable revocation checks.
func NewVerifier(tokens *TokenManager, revoked RevocationStore) *Verifier {
	return &Verifier{tokens: tokens, revoked: revoked}
}

// Verify 解析令牌并检查是否已注销
func (v *Verifier) Verify(ctx context.Context, raw string) (Claims, error) {
	claims, err := v.tokens.ParseToken(raw)
	if err != nil {
		return Claims{}, err
	}
	if v.revoked != nil {
		revoked, err := v.revoked.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return Claims{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Claims{}, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke 注销令牌直到其自然过期
func (v *Verifier) Revoke(ctx context.Context, claims Claims) error {
	if v.revoked == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return v.revoked.Revoke(ctx, claims.TokenID, ttl)
}
