package config

// DashboardConfig holds runtime configuration for the dashboard web UI.
type DashboardConfig struct {
	Addr          string `env:"DASHBOARD_ADDR" envDefault:":3000"`
	APIBaseURL    string `env:"API_BASE_URL" envDefault:"http://localhost:4000"`
	SessionSecret string `env:"SESSION_SECRET"`
	CookieName    string `env:"SESSION_COOKIE_NAME" envDefault:"teamhub_session"`
	CookieSecure  bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	Locale        string `env:"DASHBOARD_LOCALE" envDefault:"en-US"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadDashboardConfig constructs a DashboardConfig from environment variables.
func LoadDashboardConfig() (DashboardConfig, error) {
	var cfg DashboardConfig
	if err := Parse(&cfg); err != nil {
		return DashboardConfig{}, err
	}
	return cfg, nil
}
