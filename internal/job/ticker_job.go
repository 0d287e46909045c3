package job

import (
	"context"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// TickerJob runs a function on every tick until stopped. Embed it in a
// concrete job to get Start/Stop for free. Each run gets its own deadline
// of one interval, and a failed run is logged and does not stop the job.
// Stop is safe to call multiple times.
type TickerJob struct {
	name      string
	log       *log.Helper
	interval  time.Duration
	immediate bool
	run       func(ctx context.Context) error

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newTickerJob(name string, interval time.Duration, logger log.Logger, run func(ctx context.Context) error, immediate bool) TickerJob {
	return TickerJob{
		name:      name,
		log:       log.NewHelper(log.With(logger, "module", "job/"+name)),
		interval:  interval,
		immediate: immediate,
		run:       run,
		stopCh:    make(chan struct{}),
	}
}

// Start implements transport.Server. It blocks until Stop or ctx is done,
// and waits for the run in progress before returning.
func (j *TickerJob) Start(ctx context.Context) error {
	j.log.Infof("%s started, interval: %s", j.name, j.interval)
	defer j.wg.Wait()

	if j.immediate {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			j.execute(ctx)
		}()
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Infof("%s stopped by context", j.name)
			return ctx.Err()
		case <-j.stopCh:
			j.log.Infof("%s stopped", j.name)
			return nil
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *TickerJob) tick(ctx context.Context) {
	j.wg.Add(1)
	defer j.wg.Done()
	j.execute(ctx)
}

func (j *TickerJob) execute(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.interval)
	defer cancel()
	if err := j.run(ctx); err != nil {
		j.log.Errorf("%s run failed: %v", j.name, err)
	}
}

// Stop implements transport.Server.
func (j *TickerJob) Stop(_ context.Context) error {
	j.stopOnce.Do(func() {
		close(j.stopCh)
	})
	return nil
}
