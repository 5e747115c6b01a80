package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/vidshare/backend/internal/app"
)

func main() {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	ctx := context.Background()
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
