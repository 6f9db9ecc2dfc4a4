// Command logvaultd runs the logvault daemon in the foreground. It is a thin
// wrapper suitable for service managers; the logvault CLI launches the same
// runtime via `logvault daemon`.
package main

import (
	"context"
	"log"
	"os"

	"logvault/internal/config"
	"logvault/internal/daemonrun"
)

func main() {
	configPath := os.Getenv("LOGVAULT_CONFIG")
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("run daemon: %v", err)
	}
}
