package service

import (
	"context"
	"slices"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"github.com/guoxiaopeng875/txscope/internal/biz"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewHealthService)

// ErrUnknownDatabase is returned for a health check of a database that is not configured.
var ErrUnknownDatabase = errors.NotFound("UNKNOWN_DATABASE", "database is not configured")

// DatabaseStatus is the health of one database.
type DatabaseStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthService checks the configured databases on demand.
type HealthService struct {
	prober biz.DatabaseProber
	log    *log.Helper
}

func NewHealthService(prober biz.DatabaseProber, logger log.Logger) *HealthService {
	return &HealthService{
		prober: prober,
		log:    log.NewHelper(log.With(logger, "module", "service/health")),
	}
}

// Check probes the named database, or every database when name is empty.
func (s *HealthService) Check(ctx context.Context, name string) ([]DatabaseStatus, error) {
	names := s.prober.Names()
	if name != "" {
		if !slices.Contains(names, name) {
			return nil, ErrUnknownDatabase.WithMetadata(map[string]string{"database": name})
		}
		names = []string{name}
	}

	statuses := make([]DatabaseStatus, 0, len(names))
	for _, n := range names {
		st := DatabaseStatus{Name: n, Healthy: true}
		if err := s.prober.Probe(ctx, n); err != nil {
			s.log.WithContext(ctx).Warnf("database %s is unhealthy: %v", n, err)
			se := errors.FromError(err)
			st.Healthy = false
			st.Reason = se.Reason
			st.Message = err.Error()
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Healthy reports whether every status is healthy.
func Healthy(statuses []DatabaseStatus) bool {
	for _, st := range statuses {
		if !st.Healthy {
			return false
		}
	}
	return true
}
