package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"motdepasse/services"
)

type RoomHandler struct {
	registry *services.RoomRegistry
	tokens   *services.TokenService
}

func NewRoomHandler(registry *services.RoomRegistry, tokens *services.TokenService) *RoomHandler {
	return &RoomHandler{registry: registry, tokens: tokens}
}

type createRoomRequest struct {
	Name     string            `json:"name" binding:"required"`
	Settings services.Settings `json:"settings"`
}

type joinRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateRoom opens a new lobby; the caller becomes host and receives the
// room code plus their session token.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	room, host, err := h.registry.CreateRoom(req.Name, req.Settings)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	token, err := h.tokens.Issue(room.Code, host.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":      room.Code,
		"player_id": host.ID,
		"token":     token,
		"room":      room.PublicSnapshot(),
	})
}

// JoinRoom adds a player to an existing lobby.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	room, player, err := h.registry.JoinRoom(c.Param("code"), req.Name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	token, err := h.tokens.Issue(room.Code, player.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":      room.Code,
		"player_id": player.ID,
		"token":     token,
		"room":      room.PublicSnapshot(),
	})
}

// GetRoom returns the spectator-safe snapshot (no secret word).
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.registry.Get(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, room.PublicSnapshot())
}

// caller resolves the acting room and player from the verified token and
// checks they match the URL.
func (h *RoomHandler) caller(c *gin.Context) (*services.Room, string, bool) {
	code := c.Param("code")
	playerID := c.GetString("player_id")
	roomCode := c.GetString("room_code")

	room, err := h.registry.Get(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, "", false
	}
	if roomCode != room.Code {
		c.JSON(http.StatusForbidden, gin.H{"error": "Token does not match this room"})
		return nil, "", false
	}
	return room, playerID, true
}

func (h *RoomHandler) StartGame(c *gin.Context) {
	room, playerID, ok := h.caller(c)
	if !ok {
		return
	}
	if err := room.Start(playerID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game started"})
}

func (h *RoomHandler) PlayAgain(c *gin.Context) {
	room, playerID, ok := h.caller(c)
	if !ok {
		return
	}
	if err := room.PlayAgain(playerID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Room reset"})
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	room, playerID, ok := h.caller(c)
	if !ok {
		return
	}
	h.registry.RemovePlayer(room.Code, playerID)
	c.JSON(http.StatusOK, gin.H{"message": "Left room"})
}

type moveTeamRequest struct {
	PlayerID  string `json:"player_id" binding:"required"`
	TeamIndex *int   `json:"team_index" binding:"required"`
}

func (h *RoomHandler) AddTeam(c *gin.Context) {
	room, playerID, ok := h.caller(c)
	if !ok {
		return
	}
	if err := room.AddTeam(playerID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Team added"})
}

type removeTeamRequest struct {
	TeamIndex *int `json:"team_index" binding:"required"`
}

func (h *RoomHandler) RemoveTeam(c *gin.Context) {
	room, playerID, ok := h.caller(c)
	if !ok {
		return
	}
	var req removeTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "team_index is required"})
		return
	}
	if err := room.RemoveTeam(playerID, *req.TeamIndex); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Team removed"})
}

func (h *RoomHandler) MovePlayer(c *gin.Context) {
	room, playerID, ok := h.caller(c)
	if !ok {
		return
	}
	var req moveTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_id and team_index are required"})
		return
	}
	if err := room.MovePlayer(playerID, req.PlayerID, *req.TeamIndex); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Player moved"})
}

// statusFor maps engine errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotHost),
		errors.Is(err, services.ErrNotYourTurn),
		errors.Is(err, services.ErrOwnTeamSteal):
		return http.StatusForbidden
	case errors.Is(err, services.ErrRoomFull),
		errors.Is(err, services.ErrGameInProgress),
		errors.Is(err, services.ErrWrongPhase),
		errors.Is(err, services.ErrNoActiveRound):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
