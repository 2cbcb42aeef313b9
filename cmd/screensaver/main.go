package main

import (
	"os"

	"github.com/MatthiasKunnen/screensaver/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
