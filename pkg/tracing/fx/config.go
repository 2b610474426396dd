package tracingfx

import (
	"os"

	"github.com/JailtonJunior94/tracekit-go/pkg/telemetryserver"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
)

const (
	// ConfigFileEnv names an optional YAML file read before the environment.
	ConfigFileEnv = "TRACING_CONFIG_FILE"

	// ServerEnvPrefix prefixes the telemetry server variables, e.g.
	// TELEMETRY_SERVER_ADDRESS.
	ServerEnvPrefix = "TELEMETRY_SERVER"
)

// ConfigModule provides tracing.Config from TRACING_CONFIG_FILE and TRACING_*
// environment variables.
var ConfigModule = fx.Provide(ConfigFromEnv)

// ConfigFromEnv loads the tracing configuration. Environment variables win
// over the file.
func ConfigFromEnv() (tracing.Config, error) {
	return tracing.LoadConfig(os.Getenv(ConfigFileEnv))
}

// ServerConfigFromEnv loads the telemetry server configuration from
// TELEMETRY_SERVER_* variables on top of the defaults. The service name and
// version follow the tracing configuration unless set explicitly.
func ServerConfigFromEnv(cfg tracing.Config) (telemetryserver.Config, error) {
	srv := telemetryserver.DefaultConfig()
	srv.ServiceName = cfg.ServiceName
	srv.ServiceVersion = cfg.ServiceVersion

	if err := envconfig.Process(ServerEnvPrefix, &srv); err != nil {
		return telemetryserver.Config{}, err
	}
	return srv, srv.Validate()
}
