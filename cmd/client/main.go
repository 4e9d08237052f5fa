package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compclient/internal/app"
	"compclient/internal/cache"
	"compclient/internal/cli"
	"compclient/internal/config"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}
	log.Printf("[Client] Starting (env=%s, api=%s, flags=%s)", cfg.Environment, cfg.APIBaseURL, cfg.FlagStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flags := cache.NewMemoryFlagStore()
	if cfg.FlagStore == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("[Client] Failed to ping Redis at %s: %v", cfg.RedisAddr, err)
		}
		namespace := cfg.Username
		if namespace == "" {
			namespace = "default"
		}
		flags = cache.NewRedisFlagStore(rdb, namespace)
		log.Printf("[Client] Using Redis flag store at %s", cfg.RedisAddr)
	}

	a := app.New(cfg, flags)
	if err := cli.NewRunner(a, os.Stdin, os.Stdout).Run(ctx); err != nil {
		log.Printf("[Client] Exited with error: %v", err)
		os.Exit(1)
	}
	log.Printf("[Client] Exited")
}
