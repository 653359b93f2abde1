package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"ctchen222/tictactoe-history/internal/api/response"
	"ctchen222/tictactoe-history/internal/api/service"
)

// TokenCookie is the httpOnly cookie carrying the session token.
const TokenCookie = "token"

const userIDKey = "user.id"

// Auth accepts a bearer token or the token cookie and stores the user id in
// the gin context. Requests without a valid token get 401.
func Auth(tokens service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token, _ = c.Cookie(TokenCookie)
		}
		if token == "" {
			response.AbortWithError(c, service.ErrInvalidToken)
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		SetUserID(c, userID)
		c.Next()
	}
}

// SetUserID marks the request as made by userID.
func SetUserID(c *gin.Context, userID int64) {
	c.Set(userIDKey, userID)
}

// UserID returns the id stored by Auth.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// MustUserID is UserID for handlers mounted behind Auth. It aborts with 401
// and returns false when no user is present.
func MustUserID(c *gin.Context) (int64, bool) {
	id, ok := UserID(c)
	if !ok {
		response.AbortWithError(c, service.ErrInvalidToken)
	}
	return id, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
