package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var ErrNoSecret = errors.New("не задан секрет для токенов админки")

// Claims - токен бэк-офиса. Доступ к админке дает только Admin=true.
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

type ctxKeySubject struct{}

// IssueToken выпускает HS256-токен.
func IssueToken(secret []byte, subject string, admin bool, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now().UTC()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AdminOnly пропускает запрос только с валидным токеном администратора.
// Нет или битый токен - 401, токен без admin - 403.
func AdminOnly(secret []byte, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if len(secret) == 0 || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
				func(*jwt.Token) (interface{}, error) { return secret, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			)
			if err != nil || !token.Valid {
				logger.Warn("Невалидный токен админки", zap.String("remote", r.RemoteAddr), zap.Error(err))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !claims.Admin {
				logger.Warn("Токен без прав администратора",
					zap.String("remote", r.RemoteAddr), zap.String("subject", claims.Subject))
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySubject{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext возвращает subject токена администратора.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeySubject{}).(string)
	return s
}

// ContextWithSubject нужен тестам обработчиков.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject{}, subject)
}
