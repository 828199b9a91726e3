package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kdavid109/UpWake/internal/queue"
)

// Scheduler enqueues recurring maintenance work for the worker. The read
// path already prunes orphan catalog entries as a side effect; the nightly
// sweep covers orphan blobs and catalogs nobody has read recently.
type Scheduler struct {
	cron     *cron.Cron
	producer *queue.Producer
	log      zerolog.Logger
}

func NewScheduler(producer *queue.Producer, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		producer: producer,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.enqueueSweep); err != nil { // nightly
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish, up to a bound.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) enqueueSweep() {
	if err := s.producer.Enqueue(context.Background(), map[string]any{
		"type": "sweep",
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue sweep failed")
	}
}
