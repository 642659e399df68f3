package main

import (
	"log"

	corecmd "github.com/m3rciful/menubot/core/cmd"
	"github.com/m3rciful/menubot/internal/app"
)

func main() {
	if err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.Load,
		Bootstrap:         app.Bootstrap,
	}); err != nil {
		log.Fatal(err)
	}
}
