package main

import (
	"os"

	"github.com/wayfarer-ai/wayfarer/gatewayservice"
)

func main() {
	if err := gatewayservice.Run(); err != nil {
		os.Exit(1)
	}
}
