package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Treevu"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		// Driver selects the account store: "postgres" or "memory".
		Driver          string        `envconfig:"STORE_DRIVER" default:"postgres"`
		Host            string        `envconfig:"DB_HOST" default:"localhost"`
		Port            int           `envconfig:"DB_PORT" default:"5432"`
		User            string        `envconfig:"DB_USER" default:"postgres"`
		Password        string        `envconfig:"DB_PASSWORD" default:""`
		Name            string        `envconfig:"DB_NAME" default:"treevu"`
		SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
		MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
		MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
		ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	}

	Server struct {
		Timeout         time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
		AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"text"`
	}

	Auth struct {
		// JWTSecret enables bearer token verification when set.
		JWTSecret string `envconfig:"JWT_SECRET"`
		Issuer    string `envconfig:"JWT_ISSUER"`
	}

	RateLimit struct {
		RPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"10"`
		Burst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`
	}

	Engine struct {
		Fee               decimal.Decimal `envconfig:"EWA_FEE" default:"2.50"`
		EmployerLimitPct  decimal.Decimal `envconfig:"EWA_EMPLOYER_LIMIT_PCT" default:"0.5"`
		PersonalLimitPct  decimal.Decimal `envconfig:"EWA_PERSONAL_LIMIT_PCT" default:"0.5"`
		ApprovalThreshold decimal.Decimal `envconfig:"EWA_APPROVAL_THRESHOLD" default:"0"`
		TransferSLA       time.Duration   `envconfig:"EWA_TRANSFER_SLA" default:"24h"`
		PayrollTimeout    time.Duration   `envconfig:"EWA_PAYROLL_TIMEOUT" default:"30m"`
		GroupShare        decimal.Decimal `envconfig:"BUDGET_GROUP_SHARE" default:"0.4"`
		SkipBonus         int64           `envconfig:"SKIP_BONUS_POINTS" default:"15"`
		Currency          string          `envconfig:"CURRENCY" default:"PEN"`
		CatalogFile       string          `envconfig:"CATALOG_FILE"`
	}

	Payroll struct {
		Workers         int           `envconfig:"PAYROLL_WORKERS" default:"4"`
		QueueSize       int           `envconfig:"PAYROLL_QUEUE_SIZE" default:"256"`
		TransferTimeout time.Duration `envconfig:"PAYROLL_TRANSFER_TIMEOUT" default:"30s"`
		Latency         time.Duration `envconfig:"PAYROLL_SIMULATED_LATENCY" default:"2s"`
		FailureRate     float64       `envconfig:"PAYROLL_SIMULATED_FAILURE_RATE" default:"0"`
	}

	Coach struct {
		// URL of the external coaching service. Empty uses the local rules only.
		URL     string        `envconfig:"COACH_URL"`
		Token   string        `envconfig:"COACH_TOKEN"`
		Timeout time.Duration `envconfig:"COACH_TIMEOUT" default:"2s"`
	}

	Sweep struct {
		Schedule string `envconfig:"SWEEP_SCHEDULE" default:"@every 1m"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.DB.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.DB.Driver)
	}

	return &cfg, nil
}
