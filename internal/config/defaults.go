package config

// Default returns a configuration with every default applied, the base for
// `config show` and for tests.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
