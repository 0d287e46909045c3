package job

import (
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/google/wire"
)

// Registry holds all background jobs for Kratos lifecycle management.
type Registry struct {
	Probe *ProbeJob
}

// Servers returns the enabled jobs as transport.Server slice for kratos.Server().
func (r *Registry) Servers() []transport.Server {
	var servers []transport.Server
	if r.Probe != nil {
		servers = append(servers, r.Probe)
	}
	return servers
}

// ProviderSet is the job providers.
var ProviderSet = wire.NewSet(
	NewProbeJob,
	wire.Struct(new(Registry), "*"),
)
