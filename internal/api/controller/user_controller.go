package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ctchen222/tictactoe-history/internal/api/middleware"
	"ctchen222/tictactoe-history/internal/api/models"
	"ctchen222/tictactoe-history/internal/api/response"
	"ctchen222/tictactoe-history/internal/api/service"
)

// UserController handles user-related HTTP requests.
type UserController struct {
	userService  service.UserService
	secureCookie bool
}

// NewUserController creates a new UserController. secureCookie marks the
// token cookie Secure, for servers reached over TLS.
func NewUserController(userService service.UserService, secureCookie bool) *UserController {
	return &UserController{
		userService:  userService,
		secureCookie: secureCookie,
	}
}

// Register handles the user registration endpoint.
func (uc *UserController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	auth, err := uc.userService.Register(c.Request.Context(), &req)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}

	uc.setTokenCookie(c, auth.Token, auth.ExpiresAt)
	response.CreatedResponse(c, auth)
}

// Login handles the user login endpoint.
func (uc *UserController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	auth, err := uc.userService.Login(c.Request.Context(), &req)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}

	uc.setTokenCookie(c, auth.Token, auth.ExpiresAt)
	response.SuccessResponse(c, auth)
}

// Logout clears the token cookie.
func (uc *UserController) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", uc.secureCookie, true)
	response.SuccessResponse(c, gin.H{"message": "Logout successful"})
}

// Me returns the signed-in user.
func (uc *UserController) Me(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	user, err := uc.userService.Me(c.Request.Context(), userID)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.SuccessResponse(c, user)
}

func (uc *UserController) setTokenCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, token, maxAge, "/", "", uc.secureCookie, true)
}
