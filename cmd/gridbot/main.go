// Command gridbot runs the DOGE/FDUSD grid bot in paper or live mode.
//
// Configuration comes from environment variables, optionally layered over a
// YAML file named by CONFIG_FILE. See config.Load.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shubhamshinde5080/DogeBOT/config"
	"github.com/Shubhamshinde5080/DogeBOT/internal/gridengine"
	"github.com/Shubhamshinde5080/DogeBOT/internal/logger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[gridbot] config: %v", err)
	}
	lg := logger.Init("gridbot", logger.ParseLevel(cfg.LogLevel))
	log.Printf("[gridbot] mode=%s symbol=%s interval=%s", cfg.Mode, cfg.Symbol, cfg.Interval)

	svc, err := gridengine.New(cfg, lg)
	if err != nil {
		log.Fatalf("[gridbot] init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[gridbot] fatal: %v", err)
	}
}
