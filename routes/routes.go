package routes

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"motdepasse/handlers"
	"motdepasse/middleware"
	"motdepasse/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	roomHandler *handlers.RoomHandler,
	hub *services.Hub,
	registry *services.RoomRegistry,
	tokens *services.TokenService,
) {
	api := router.Group("/api")
	{
		// Public room routes
		rooms := api.Group("/rooms")
		{
			rooms.POST("", roomHandler.CreateRoom)
			rooms.POST("/:code/join", roomHandler.JoinRoom)
			rooms.GET("/:code", roomHandler.GetRoom)
		}

		// Token-gated routes
		protected := api.Group("/rooms")
		protected.Use(middleware.PlayerAuth(tokens))
		{
			protected.POST("/:code/start", roomHandler.StartGame)
			protected.POST("/:code/play-again", roomHandler.PlayAgain)
			protected.POST("/:code/leave", roomHandler.LeaveRoom)
			protected.POST("/:code/teams", roomHandler.AddTeam)
			protected.DELETE("/:code/teams", roomHandler.RemoveTeam)
			protected.POST("/:code/teams/move", roomHandler.MovePlayer)
		}
	}

	// WebSocket endpoint for real-time game communication. The token query
	// parameter carries the same JWT issued on create/join; the socket is
	// only opened for the player the token names.
	router.GET("/ws/:code/:playerID", func(c *gin.Context) {
		code := strings.ToUpper(c.Param("code"))
		playerID := c.Param("playerID")

		claims, err := tokens.Parse(c.Query("token"))
		if err != nil || claims.RoomCode != code || claims.PlayerID != playerID {
			log.Printf("[WS] Rejected connection for room %s, player %s: bad token", code, playerID)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		room, err := registry.Get(code)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		if !room.HasPlayer(playerID) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Player not found in room"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed for room %s, player %s: %v", code, playerID, err)
			return
		}

		hub.RegisterClient(conn, code, playerID, c.Query("name"))
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"rooms":  registry.Count(),
		})
	})
}
