package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "linen-ledger/internal/adapters/web"
	"linen-ledger/internal/ai"
	"linen-ledger/internal/app"
	"linen-ledger/internal/core"
	"linen-ledger/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	ledger := core.NewLedger(pool)
	locationService := core.NewLocationService(pool)
	movementService := core.NewMovementService(ledger, locationService)
	vendorService := core.NewVendorService(pool)
	itemService := core.NewItemService(pool)
	propertyService := core.NewPropertyService(pool)
	userService := core.NewUserService(pool)

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set")
	}
	agent := ai.NewAgent(apiKey)

	svc := app.NewAppService(ledger, movementService, locationService, vendorService, itemService, propertyService, userService, agent)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins, jwtSecret)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
