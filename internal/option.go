package internal

// Option customises how the application is assembled before Run or RunMCP
// starts it.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig supplies the validated configuration. Both entry points fail
// without one.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
