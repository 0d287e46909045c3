package server

import (
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/encoding"
	"github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guoxiaopeng875/txscope/internal/conf"
	"github.com/guoxiaopeng875/txscope/internal/metrics"
	"github.com/guoxiaopeng875/txscope/internal/service"
)

// NewHTTPServer serves the database health check and the metrics.
//
//	GET /healthz/db[?name=<database>]
//	GET /metrics
func NewHTTPServer(c *conf.Server, health *service.HealthService, reg *metrics.Registry, logger log.Logger) *http.Server {
	opts := []http.ServerOption{
		http.Middleware(recovery.Recovery()),
	}
	if c != nil && c.HTTP != nil {
		if c.HTTP.Addr != "" {
			opts = append(opts, http.Address(c.HTTP.Addr))
		}
		if c.HTTP.Timeout.Duration > 0 {
			opts = append(opts, http.Timeout(c.HTTP.Timeout.Duration))
		}
	}
	srv := http.NewServer(opts...)
	srv.HandleFunc("/healthz/db", dbHealthHandler(health, log.NewHelper(log.With(logger, "module", "server/http"))))
	srv.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
	return srv
}

type healthResponse struct {
	Healthy   bool                     `json:"healthy"`
	Databases []service.DatabaseStatus `json:"databases,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
	Message   string                   `json:"message,omitempty"`
}

func dbHealthHandler(health *service.HealthService, logHelper *log.Helper) nethttp.HandlerFunc {
	codec := encoding.GetCodec(json.Name)
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			w.Header().Set("Allow", nethttp.MethodGet)
			w.WriteHeader(nethttp.StatusMethodNotAllowed)
			return
		}

		var (
			resp   healthResponse
			status = nethttp.StatusOK
		)
		statuses, err := health.Check(r.Context(), r.URL.Query().Get("name"))
		switch {
		case err != nil:
			se := errors.FromError(err)
			status = int(se.Code)
			resp.Reason, resp.Message = se.Reason, se.Message
		case !service.Healthy(statuses):
			status = nethttp.StatusServiceUnavailable
			resp.Databases = statuses
		default:
			resp.Healthy = true
			resp.Databases = statuses
		}

		body, err := codec.Marshal(resp)
		if err != nil {
			logHelper.Errorf("failed to encode health response: %v", err)
			w.WriteHeader(nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if _, err := w.Write(body); err != nil {
			logHelper.Debugf("failed to write health response: %v", err)
		}
	}
}
