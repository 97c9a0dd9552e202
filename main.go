package main

import (
	"log"

	"motdepasse/config"
	"motdepasse/handlers"
	"motdepasse/middleware"
	"motdepasse/models"
	"motdepasse/routes"
	"motdepasse/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present
	if err := godotenv.Load(); err != nil {
		log.Println("[CONFIG] No .env file found, using environment")
	}

	// Load configuration
	cfg := config.Load()

	// Pick the word source: the built-in list, or the Postgres words table
	var bank services.WordBank
	if cfg.WordSource == "db" {
		db, err := config.InitDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		if err := db.AutoMigrate(&models.Word{}); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		bank, err = services.NewGormWordBank(db, cfg.WordReusePolicy)
		if err != nil {
			log.Fatal("Failed to load word bank:", err)
		}
	} else {
		bank = services.DefaultWordBank(cfg.WordReusePolicy)
	}

	// Initialize Redis snapshot mirror (optional)
	store := services.NewSnapshotStore(config.InitRedis(cfg))

	// Initialize services
	timer := services.NewTimerService()
	registry := services.NewRoomRegistry(timer, bank, store)
	tokens := services.NewTokenService(cfg.JWTSecret)

	// Initialize WebSocket hub
	hub := services.NewHub(registry)
	registry.SetBroadcaster(hub)
	go hub.Run()

	// Initialize handlers
	roomHandler := handlers.NewRoomHandler(registry, tokens)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, roomHandler, hub, registry, tokens)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
