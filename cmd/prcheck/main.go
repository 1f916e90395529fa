package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/2beens/traininglog/internal/prcheck"
	"github.com/2beens/traininglog/internal/traininglog"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()
	log.SetLevel(log.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := prcheck.NewRootCommand(func(ctx context.Context, opts *prcheck.RootOptions) (*traininglog.Service, func(), error) {
		opts.PostgresPassword = os.Getenv("TRAININGLOG_POSTGRES_PASS")
		return prcheck.OpenConfiguredService(ctx, opts)
	})
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, err)
	stop()
	if errors.Is(err, prcheck.ErrInconsistent) {
		os.Exit(2)
	}
	os.Exit(1)
}
