package main

import (
	"errors"
	"flag"
	"os"
	"time"

	"github.com/go-kratos/kratos/contrib/config/apollo/v2"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"github.com/go-kratos/kratos/v2/transport/http"
	_ "go.uber.org/automaxprocs"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/guoxiaopeng875/txscope/internal/conf"
	"github.com/guoxiaopeng875/txscope/internal/job"
	"github.com/guoxiaopeng875/txscope/pkg/env"
	zapLog "github.com/guoxiaopeng875/txscope/pkg/log"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name string
	// Version is the version of the compiled software.
	Version string
	// id is the service instance id.
	id string
	// Command line flags
	flagConf string
)

func init() {
	json.MarshalOptions = protojson.MarshalOptions{
		EmitUnpopulated: true,
		UseProtoNames:   true,
	}

	var err error
	id, err = os.Hostname()
	if err != nil {
		id = "unknown"
	}

	if Name == "" {
		Name = env.GetOrDefault("SERVICE_NAME", "txscope")
	}

	if Version == "" {
		Version = env.GetOrDefault("SERVICE_VERSION", "0.0.1")
	}
}

func newApp(logger log.Logger, gs *grpc.Server, hs *http.Server, jobs *job.Registry) *kratos.App {
	servers := []transport.Server{gs, hs}
	servers = append(servers, jobs.Servers()...)
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(servers...),
		kratos.StopTimeout(env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second)),
	)
}

func main() {
	flag.StringVar(&flagConf, "conf", "", "config file path (e.g., ./configs/config.yaml)")
	flag.Parse()

	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logger := log.With(
		zapLog.New(zapLog.Config{
			Format: env.GetOrDefault("LOG_FORMAT", zapLog.FormatConsole),
			Level:  zapLog.ParseLevel(env.GetOrDefault("LOG_LEVEL", "info")),
		}),
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)
	log.SetLogger(logger)
	logHelper := log.NewHelper(logger)

	// Load configuration
	bc, cleanup, err := loadConfig()
	if err != nil {
		logHelper.Errorf("failed to load config: %v", err)
		return err
	}
	defer cleanup()

	app, appCleanup, err := wireApp(bc.Server, bc.Data, bc.Probe, logger)
	if err != nil {
		logHelper.Errorf("failed to wire app: %v", err)
		return err
	}
	defer appCleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		logHelper.Errorf("app exited with error: %v", err)
		return err
	}
	return nil
}

// loadConfig loads configuration from file or Apollo.
// Priority: -conf flag > CONFIG_FILE env > Apollo
func loadConfig() (*conf.Bootstrap, func(), error) {
	confFile := flagConf
	if confFile == "" {
		confFile = env.GetOrDefault("CONFIG_FILE", "")
	}

	var (
		c    config.Config
		scan func(v any) error
	)
	if confFile != "" {
		c = config.New(config.WithSource(file.NewSource(confFile)))
		scan = c.Scan
	} else {
		c = config.New(
			config.WithSource(
				apollo.NewSource(
					apollo.WithAppID(env.GetOrDefault("APOLLO_APP_ID", Name)),
					apollo.WithCluster(env.GetOrDefault("APOLLO_CLUSTER", "dev")),
					apollo.WithEndpoint(env.GetOrDefault("APOLLO_ENDPOINT", "http://localhost:8080")),
					apollo.WithNamespace(env.GetOrDefault("APOLLO_NAMESPACE", "application,bootstrap.yaml")),
					apollo.WithSecret(env.Get("APOLLO_SECRET")),
				),
			),
		)
		scan = func(v any) error { return c.Value("bootstrap").Scan(v) }
	}

	if err := c.Load(); err != nil {
		c.Close()
		return nil, nil, err
	}

	var bc conf.Bootstrap
	if err := scan(&bc); err != nil {
		c.Close()
		return nil, nil, err
	}
	if bc.Data == nil {
		c.Close()
		return nil, nil, errors.New("config: data section is missing")
	}

	return &bc, func() { c.Close() }, nil
}
