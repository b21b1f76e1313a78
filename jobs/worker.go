package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/koreacc/koreacc/internal/closing"
)

// Worker consumes background tasks.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	closing *closing.Service
	log     *slog.Logger
}

func NewWorker(redisAddr string, closingSvc *closing.Service, log *slog.Logger) *Worker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 4,
			Queues:      map[string]int{"default": 1},
		},
	)
	w := &Worker{server: server, mux: asynq.NewServeMux(), closing: closingSvc, log: log}
	w.mux.HandleFunc(TaskOpeningRecompute, w.handleOpeningRecompute)
	return w
}

func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleOpeningRecompute(ctx context.Context, t *asynq.Task) error {
	var p OpeningRecomputePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	cf, err := w.closing.RecomputeOpening(ctx, p.SourceExerciseID, p.ActorID, p.CostCenterID)
	if err != nil {
		w.log.Warn("opening recompute retry failed", "exercise", p.SourceExerciseID, "err", err)
		return err
	}
	w.log.Info("opening recompute done",
		"exercise", p.SourceExerciseID,
		"entry", cf.EntryID,
		"provisional", cf.Provisional,
	)
	return nil
}
