package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allresumeservices/client-intake/internal/config"
	"github.com/allresumeservices/client-intake/internal/di"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional env file loaded before configuration")
	flag.Parse()
	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatal(err)
	}

	if flag.Arg(0) == "migrate" {
		runner, cleanup, err := di.InitializeMigrationRunner()
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()
		if err := runner.Run(); err != nil {
			log.Fatal(err)
		}
		return
	}

	a, cleanup, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.Serve)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		a.Logger.Error("server stopped with error", "error", err)
		cleanup()
		os.Exit(1)
	}
	a.Logger.Info("server stopped")
}
