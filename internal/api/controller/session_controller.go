package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ctchen222/tictactoe-history/internal/api/middleware"
	"ctchen222/tictactoe-history/internal/api/models"
	"ctchen222/tictactoe-history/internal/api/response"
	"ctchen222/tictactoe-history/internal/api/service"
)

// SessionController exposes play sessions over HTTP.
type SessionController struct {
	sessionService service.SessionService
}

func NewSessionController(sessionService service.SessionService) *SessionController {
	return &SessionController{sessionService: sessionService}
}

// Start opens a new game for the user.
func (sc *SessionController) Start(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	session, err := sc.sessionService.Start(c.Request.Context(), userID)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.CreatedResponse(c, session)
}

func (sc *SessionController) Get(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	session, err := sc.sessionService.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.SuccessResponse(c, session)
}

func (sc *SessionController) Move(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	var req models.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := sc.sessionService.Move(c.Request.Context(), userID, c.Param("id"), *req.Index, req.Player)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.SuccessResponse(c, session)
}

func (sc *SessionController) Reset(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	session, err := sc.sessionService.Reset(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.SuccessResponse(c, session)
}

// Save records the session's finished game.
func (sc *SessionController) Save(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	session, err := sc.sessionService.Save(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.CreatedResponse(c, session)
}

func (sc *SessionController) Hint(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	var q models.HintQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	index, err := sc.sessionService.Hint(c.Request.Context(), userID, c.Param("id"), q.Difficulty)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.SuccessResponse(c, models.HintResponse{Index: index})
}
