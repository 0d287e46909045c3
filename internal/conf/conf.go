// Package conf holds the bootstrap configuration, scanned by kratos config
// from a file or Apollo.
package conf

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/guoxiaopeng875/txscope/pkg/env"
)

// Database providers.
const (
	ProviderMySQL    = "mysql"
	ProviderPostgres = "postgres"
)

// Bootstrap is the root of the configuration.
type Bootstrap struct {
	Server *Server `json:"server"`
	Data   *Data   `json:"data"`
	Probe  *Probe  `json:"probe"`
}

type Server struct {
	HTTP *Listener `json:"http"`
	GRPC *Listener `json:"grpc"`
}

// Listener is the address and request timeout of one transport.
type Listener struct {
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// Data lists the named databases. Default names the database used by the
// unit-of-work API when no name is given.
type Data struct {
	Default   string               `json:"default"`
	Databases map[string]*Database `json:"databases"`
}

type Database struct {
	Provider        string   `json:"provider"`
	DSN             string   `json:"dsn"`
	MaxOpenConns    int32    `json:"max_open_conns"`
	MaxIdleConns    int32    `json:"max_idle_conns"`
	ConnMaxLifetime Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `json:"conn_max_idle_time"`
}

// Probe configures the periodic database health probe. A zero interval disables it.
type Probe struct {
	Interval Duration `json:"interval"`
}

// ApplyEnv overrides configured DSNs from the environment, so credentials
// need not live in the config source: DB_<NAME>_DSN.
func (d *Data) ApplyEnv() {
	if d == nil {
		return
	}
	for name, db := range d.Databases {
		if db == nil {
			continue
		}
		if dsn := env.Get(env.Key("db", name, "dsn")); dsn != "" {
			db.DSN = dsn
		}
	}
}

// Duration is a time.Duration read from "1.5s" style strings or from
// a number of nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	case nil:
		d.Duration = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
