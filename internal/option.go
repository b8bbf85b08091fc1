package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	launchArgs []string
	version    string
	exit       func(code int)
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLaunchArgs sets the positional arguments the process was started with.
func WithLaunchArgs(args []string) Option {
	return func(a *application) {
		a.launchArgs = args
	}
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithExit replaces os.Exit for the tray quit path.
func WithExit(fn func(code int)) Option {
	return func(a *application) {
		a.exit = fn
	}
}
