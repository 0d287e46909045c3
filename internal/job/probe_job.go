package job

import (
	"context"
	"errors"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/guoxiaopeng875/txscope/internal/biz"
	"github.com/guoxiaopeng875/txscope/internal/conf"
)

// ProbeJob periodically runs an empty transaction on every configured
// database.
type ProbeJob struct {
	TickerJob
	prober biz.DatabaseProber
	log    *log.Helper
}

// NewProbeJob returns nil when probing is disabled.
func NewProbeJob(c *conf.Probe, prober biz.DatabaseProber, logger log.Logger) *ProbeJob {
	if c == nil || c.Interval.Duration <= 0 {
		return nil
	}
	j := &ProbeJob{
		prober: prober,
		log:    log.NewHelper(log.With(logger, "module", "job/db-probe")),
	}
	j.TickerJob = newTickerJob("db-probe", c.Interval.Duration, logger, j.probe, true)
	return j
}

// probe checks every database, also after one failed.
func (j *ProbeJob) probe(ctx context.Context) error {
	var errs []error
	for _, name := range j.prober.Names() {
		if err := j.prober.Probe(ctx, name); err != nil {
			j.log.Warnf("database %s probe failed: %v", name, err)
			errs = append(errs, err)
			continue
		}
		j.log.Debugf("database %s is healthy", name)
	}
	return errors.Join(errs...)
}
