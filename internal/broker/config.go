package broker

// Config holds the broker's tunable parameters. NewService replaces
// zero-value fields with DefaultConfig's values.
type Config struct {
	// SocketPath is the filesystem path of the UNIX domain socket the
	// broker listens on. The path is removed if it exists before binding.
	SocketPath string `yaml:"socket_path"`

	// Backlog is carried in the configuration but not applied: the
	// listener is created with net.ListenUnix, which uses the operating
	// system's default listen(2) backlog.
	Backlog int `yaml:"backlog"`

	// Workers bounds the number of frames handled concurrently, so that
	// one slow handler (e.g. fanning out a publish to many subscribers)
	// cannot stall a connection's own reader goroutine.
	Workers int `yaml:"workers"`
}

// DefaultSocketPath is the well-known broker socket path used when no
// other path is configured.
const DefaultSocketPath = "/var/tmp/ubus.sock"

// DefaultConfig returns the broker defaults: socket at DefaultSocketPath,
// backlog 32, a 5-worker frame-handling pool.
func DefaultConfig() Config {
	return Config{
		SocketPath: DefaultSocketPath,
		Backlog:    32,
		Workers:    5,
	}
}

// withDefaults fills any zero fields in cfg with DefaultConfig's values.
func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.SocketPath == "" {
		cfg.SocketPath = def.SocketPath
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = def.Backlog
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return cfg
}
