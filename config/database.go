package config

import "time"

// DBConfig contains PostgreSQL database configuration for the notification journal.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"desa"`
	Password string `env:"PASSWORD" envDefault:"desa"`
	Name     string `env:"NAME"     envDefault:"desa_admin"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}

// JournalConfig controls the durable notification journal.
type JournalConfig struct {
	Enabled       bool          `env:"JOURNAL_ENABLED"        envDefault:"false"`
	AppendTimeout time.Duration `env:"JOURNAL_APPEND_TIMEOUT" envDefault:"2s"`
	HistoryLimit  int           `env:"JOURNAL_HISTORY_LIMIT"  envDefault:"50"`
	// Buffer is how many notifications may wait for the journal writer before new ones are dropped.
	Buffer int `env:"JOURNAL_BUFFER" envDefault:"64"`
}

// Sanitize applies guardrails to journal configuration values.
func (c *JournalConfig) Sanitize() {
	if c.AppendTimeout <= 0 {
		c.AppendTimeout = 2 * time.Second
	}
	if c.HistoryLimit < 1 {
		c.HistoryLimit = 1
	}
	if c.HistoryLimit > 500 {
		c.HistoryLimit = 500
	}
	if c.Buffer < 1 {
		c.Buffer = 1
	}
}
