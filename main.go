package main

import (
	"log"

	"backtest-api/cmd"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		log.Fatalf("could not start application: %v", err)
	}
}
