package internal

// Option is a functional option for configuring the server.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig sets the server configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
