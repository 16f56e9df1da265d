package main

import (
	"log"

	"github.com/MrSnakeDoc/matjip/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ matjip failed to start: %v", err)
	}
}
