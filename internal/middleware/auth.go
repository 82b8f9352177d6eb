package middleware

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const DriverContextKey contextKey = "driver"

// DriverClaims is the authenticated identity attached to a request.
type DriverClaims struct {
	DriverID string `json:"driver_id"`
	Email    string `json:"email"`
}

// ParseToken validates a signed token string and extracts the driver claims.
// Shared by the HTTP middleware and the WebSocket upgrade handler, which
// receives its token as a query parameter instead of a header.
func ParseToken(tokenString string) (DriverClaims, error) {
	jwtSecret := os.Getenv("APP_JWT_SECRET")
	if jwtSecret == "" {
		return DriverClaims{}, jwt.ErrInvalidKey
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return DriverClaims{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return DriverClaims{}, jwt.ErrTokenInvalidClaims
	}

	driverID, ok := claims["driver_id"].(string)
	if !ok || driverID == "" {
		return DriverClaims{}, jwt.ErrTokenInvalidClaims
	}
	email, _ := claims["email"].(string)

	return DriverClaims{DriverID: driverID, Email: email}, nil
}

// Auth middleware validates the bearer token and adds driver claims to context
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := ParseToken(parts[1])
		if err != nil {
			log.Printf("❌ Invalid token on %s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), DriverContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDriverFromContext extracts driver claims from request context
func GetDriverFromContext(r *http.Request) (DriverClaims, bool) {
	claims, ok := r.Context().Value(DriverContextKey).(DriverClaims)
	return claims, ok
}
