package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ctchen222/tictactoe-history/internal/api/middleware"
	"ctchen222/tictactoe-history/internal/api/models"
	"ctchen222/tictactoe-history/internal/api/response"
	"ctchen222/tictactoe-history/internal/api/service"
	"ctchen222/tictactoe-history/internal/stats"
)

// GameController serves the recorded game history.
type GameController struct {
	gameService service.GameService
}

func NewGameController(gameService service.GameService) *GameController {
	return &GameController{gameService: gameService}
}

// Save records a finished game sent by the client.
func (gc *GameController) Save(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	var req models.SaveGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := gc.gameService.Save(c.Request.Context(), userID, &req)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.CreatedResponse(c, models.SaveGameResponse{GameID: id})
}

// History returns one page of the user's games.
func (gc *GameController) History(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	var q models.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	history, err := gc.gameService.History(c.Request.Context(), userID, q.Page, q.Limit)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.SuccessResponse(c, history)
}

// Stats returns the user's summary.
func (gc *GameController) Stats(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}

	summary, err := gc.gameService.Stats(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, stats.ErrDataIntegrity) {
			slog.ErrorContext(c.Request.Context(), "Refusing to serve stats over corrupt history", "user.id", userID)
		}
		response.AbortWithError(c, err)
		return
	}
	response.SuccessResponse(c, summary)
}
