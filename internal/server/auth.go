package server

import (
	"net/http"
	"strings"
	"time"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

type tokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

func (api *TaskAPI) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(api.secret()))
}

func (api *TaskAPI) parseToken(tokenString string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidToken
		}
		return []byte(api.secret()), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

func (api *TaskAPI) secret() string {
	if api.cfg != nil && api.cfg.JWTSecret != "" {
		return api.cfg.JWTSecret
	}
	return defaultJWTSecret
}

// authRequired проверяет заголовок Authorization: Bearer <token>.
// Отсутствие токена - 401, недействительный или просроченный токен - 403.
func (api *TaskAPI) authRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var tokenString string
		if parts := strings.SplitN(ctx.GetHeader("Authorization"), " ", 2); len(parts) == 2 {
			tokenString = strings.TrimSpace(parts[1])
		}
		if tokenString == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrTokenRequired.Error()})
			return
		}

		claims, err := api.parseToken(tokenString)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errors.ErrInvalidToken.Error()})
			return
		}

		ctx.Set("user_id", claims.UserID)
		ctx.Set("username", claims.Username)
		ctx.Set("name", claims.Name)
		ctx.Next()
	}
}

func callerID(ctx *gin.Context) (string, bool) {
	id := ctx.GetString("user_id")
	return id, id != ""
}
