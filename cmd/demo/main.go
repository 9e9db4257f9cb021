package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mehmetymw/failover-dispatch/internal/adapter/memory"
	"github.com/mehmetymw/failover-dispatch/internal/adapter/provider"
	"github.com/mehmetymw/failover-dispatch/internal/app"
	"github.com/mehmetymw/failover-dispatch/internal/domain"
	"github.com/mehmetymw/failover-dispatch/internal/port"
	"github.com/mehmetymw/failover-dispatch/pkg/logger"
)

func main() {
	log, err := logger.New("warn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	providers := []port.Provider{
		provider.NewMockProvider("Provider1", 0.5, 10*time.Millisecond),
		provider.NewMockProvider("Provider2", 0.1, 10*time.Millisecond),
	}

	coordinator, err := app.NewDispatchCoordinator(memory.NewStatusStore(), providers,
		app.WithRetryLimit(3),
		app.WithLogger(log),
	)
	if err != nil {
		log.Fatal("failed to build dispatch coordinator", zap.Error(err))
	}

	reqs := make([]app.DispatchRequest, 0, 3)
	for i, key := range []string{"unique-key-123", "unique-key-456", "unique-key-789"} {
		msg, err := domain.NewMessage(
			fmt.Sprintf("user%d@example.com", i+1),
			"Hello",
			fmt.Sprintf("demo message %d", i+1),
			nil,
		)
		if err != nil {
			log.Fatal("invalid demo message", zap.Error(err))
		}
		reqs = append(reqs, app.DispatchRequest{IdempotencyKey: key, Message: msg})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i, item := range coordinator.DispatchBatch(ctx, reqs, len(reqs)) {
		key := reqs[i].IdempotencyKey
		if item.Err != nil {
			fmt.Printf("%s: %s (%v)\n", key, coordinator.GetStatus(key), item.Err)
			continue
		}
		via := item.Result.Provider
		if via == "" {
			via = "-"
		}
		fmt.Printf("%s: %s via %s after %d attempt(s)\n", key, item.Result.Status, via, len(item.Result.Attempts))
	}

	// A repeated key is answered from the status store without sending.
	again, err := coordinator.Dispatch(ctx, reqs[0].Message, reqs[0].IdempotencyKey)
	if err == nil {
		fmt.Printf("%s again: %s (duplicate=%t)\n", again.IdempotencyKey, again.Status, again.Duplicate)
	}
}
