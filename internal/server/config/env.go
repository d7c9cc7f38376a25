package config

import (
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name in the env tags of Config.
const EnvPrefix = "SPA_AUTH_"

// parseEnv overlays variables that are present in the environment; absent
// ones leave the current value untouched. Malformed values panic, like a
// malformed config file does.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
