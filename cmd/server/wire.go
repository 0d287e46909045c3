//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"github.com/guoxiaopeng875/txscope/internal/conf"
	"github.com/guoxiaopeng875/txscope/internal/data"
	"github.com/guoxiaopeng875/txscope/internal/job"
	"github.com/guoxiaopeng875/txscope/internal/metrics"
	"github.com/guoxiaopeng875/txscope/internal/server"
	"github.com/guoxiaopeng875/txscope/internal/service"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Probe, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		metrics.NewRegistry,
		data.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		job.ProviderSet,
		newApp,
	))
}
