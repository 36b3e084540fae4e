package main

import (
	"os"

	"github.com/wayfarer-ai/wayfarer/workerservice"
)

func main() {
	if err := workerservice.Run(); err != nil {
		os.Exit(1)
	}
}
