package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"streamlify/internal/idea/model"
	"streamlify/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	RoleKey   contextKey = "role"
)

// Auth returns middleware that validates an HS256 bearer token signed with
// secret and stores the "sub" and "role" claims in the request context.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Browsers can't set headers on WebSocket upgrades, so the feed
			// passes its token in the query string.
			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				authHeader := r.Header.Get("Authorization")
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			}

			if tokenString == "" {
				http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}

			userID, role, err := parseToken(tokenString, secret)
			if err != nil {
				logger.Sugar.Infof("Invalid token: %v", err)
				http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseToken(tokenString string, secret []byte) (userID, role string, err error) {
	if len(secret) == 0 {
		return "", "", errors.New("server is not configured to validate JWTs")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", errors.New("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("could not parse token claims")
	}
	userID, ok = claims["sub"].(string)
	if !ok || userID == "" {
		return "", "", errors.New("user ID (sub) claim is missing or invalid")
	}
	role, _ = claims["role"].(string)
	return userID, role, nil
}

// GenerateToken signs an HS256 token for userID. An empty role is omitted.
func GenerateToken(secret []byte, userID, role string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ActorFrom returns the authenticated caller stored by Auth.
func ActorFrom(ctx context.Context) model.Actor {
	userID, _ := ctx.Value(UserIDKey).(string)
	role, _ := ctx.Value(RoleKey).(string)
	return model.Actor{UserID: userID, Role: role}
}
