package router

import (
	"context"
	"log"

	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/boazAvami/Epi-Com-sub000/internal/handlers"
	"github.com/boazAvami/Epi-Com-sub000/internal/middleware"
	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"github.com/boazAvami/Epi-Com-sub000/internal/repositories"
	"github.com/boazAvami/Epi-Com-sub000/internal/sos"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, firebaseAuthClient *auth.Client, fcmClient *messaging.Client, logger *zap.Logger) {
	// AutoMigrate PostgreSQL models
	if err := pgdb.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed.")

	mongoDB := mgClient.Database("epicom")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	deviceRepo := repositories.NewMongoDeviceRepository(mongoDB)
	sosRepo := repositories.NewMongoSOSRepository(mongoDB)

	ctx := context.Background()
	if err := deviceRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to create device indexes: %v", err)
	}
	if err := sosRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to create SOS indexes: %v", err)
	}
	log.Println("MongoDB indexes ensured.")

	// --- SOS alert engine ---
	catalog, err := sos.NewCatalog()
	if err != nil {
		log.Fatalf("Failed to load message catalog: %v", err)
	}
	locator := sos.NewLocator(deviceRepo)
	dispatcher := sos.NewDispatcher(userRepo, fcmClient, sosRepo, catalog, logger, sos.DispatchConfig{})
	sosService := sos.NewService(sosRepo, locator, dispatcher, logger)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, firebaseAuthClient)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// User profile routes
	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterProfileRoutes(api)
	log.Println("User profile routes configured.")

	// Device location routes
	deviceHandler := handlers.NewDeviceHandler(deviceRepo)
	deviceHandler.RegisterDeviceRoutes(api)
	log.Println("Device routes configured.")

	// SOS routes
	sosHandler := handlers.NewSOSHandler(sosService)
	sosHandler.RegisterSOSRoutes(api)
	log.Println("SOS routes configured.")

	log.Println("All routes configured.")
}
