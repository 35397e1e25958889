package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "reportpilot_db", cfg.Database.Database)
				assert.Equal(t, "reports_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "report_runs", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
				assert.Equal(t, "reports@example.com", cfg.Email.FromEmail)
				assert.Equal(t, "reportpilot-api", cfg.App.Name)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/invalid_port.yaml")
	require.NoError(t, err)

	// Fields the minimal file omits pick up defaults
	assert.Equal(t, StorageDriverFile, cfg.Storage.Driver)
	assert.Equal(t, "data", cfg.Storage.Dir)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Worker.RunTimeout)
	assert.Equal(t, 3, cfg.Google.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Google.RetryBaseDelay)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, "Report Bot", cfg.Email.FromName)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.SMTP.Host)
	assert.Equal(t, 465, cfg.Email.SMTP.Port)
	assert.Equal(t, "en", cfg.Reports.DefaultLanguage)
	assert.Equal(t, 10, cfg.Reports.SampleRows)
	assert.Equal(t, 4, cfg.Reports.MaxCharts)
	assert.Equal(t, 24*time.Hour, cfg.Reports.ArtifactTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "reportpilot", cfg.App.Name)
}

func TestLoad_SecretsFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-key")
	t.Setenv("SENDGRID_API_KEY", "sg-key")
	t.Setenv("SENDGRID_FROM_EMAIL", "env-from@example.com")
	t.Setenv("SENDGRID_FROM_NAME", "Env Bot")
	t.Setenv("DEFAULT_RECIPIENT_EMAIL", "boss@example.com")
	t.Setenv("SMTP_USER", "smtp-user")
	t.Setenv("SMTP_PASS", "smtp-pass")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2465")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"client_email":"svc@example.iam.gserviceaccount.com"}`)

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "gm-key", cfg.Gemini.APIKey)
	assert.Equal(t, "sg-key", cfg.Email.SendGridAPIKey)
	// Environment wins over the YAML value
	assert.Equal(t, "env-from@example.com", cfg.Email.FromEmail)
	assert.Equal(t, "Env Bot", cfg.Email.FromName)
	assert.Equal(t, "boss@example.com", cfg.Email.DefaultRecipient)
	assert.Equal(t, "smtp-user", cfg.Email.SMTPUser)
	assert.Equal(t, "smtp-pass", cfg.Email.SMTPPass)
	assert.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	assert.Equal(t, 2465, cfg.Email.SMTP.Port)
	assert.Contains(t, cfg.Google.CredentialsJSON, "svc@example.iam.gserviceaccount.com")
}

func TestLoad_LegacyFromEmailEnv(t *testing.T) {
	t.Setenv("SENDGRID_FROM_EMAIL", "")
	t.Setenv("SENDGRID_FROM_NAME", "")
	t.Setenv("RESEND_FROM_EMAIL", "legacy@example.com")
	t.Setenv("RESEND_FROM_NAME", "Legacy Bot")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "legacy@example.com", cfg.Email.FromEmail)
	assert.Equal(t, "Legacy Bot", cfg.Email.FromName)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			Storage: StorageConfig{Driver: StorageDriverPostgres, Dir: "data"},
			Database: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "reportpilot_db",
			},
			RabbitMQ: RabbitMQConfig{
				Host: "localhost",
				Port: 5672,
				Exchange: ExchangeConfig{
					Name: "reports_exchange",
				},
				Queue: QueueConfig{
					Name: "report_runs",
				},
			},
			Reports: ReportsConfig{ArtifactDir: "data/artifacts"},
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "file driver skips database checks",
			mutate: func(c *Config) {
				c.Storage.Driver = StorageDriverFile
				c.Database = DatabaseConfig{}
			},
			wantErr: false,
		},
		{
			name: "unknown storage driver",
			mutate: func(c *Config) {
				c.Storage.Driver = "sqlite"
			},
			wantErr:   true,
			errString: "invalid storage driver",
		},
		{
			name: "empty database host",
			mutate: func(c *Config) {
				c.Database.Host = ""
			},
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name: "invalid database port",
			mutate: func(c *Config) {
				c.Database.Port = 0
			},
			wantErr:   true,
			errString: "invalid database port",
		},
		{
			name: "empty database name",
			mutate: func(c *Config) {
				c.Database.Database = ""
			},
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name: "empty rabbitmq host",
			mutate: func(c *Config) {
				c.RabbitMQ.Host = ""
			},
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "empty exchange name",
			mutate: func(c *Config) {
				c.RabbitMQ.Exchange.Name = ""
			},
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "empty queue name",
			mutate: func(c *Config) {
				c.RabbitMQ.Queue.Name = ""
			},
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "server port too low",
			mutate: func(c *Config) {
				c.Server.Port = 0
			},
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name: "server port too high",
			mutate: func(c *Config) {
				c.Server.Port = 70000
			},
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name: "missing artifact dir",
			mutate: func(c *Config) {
				c.Reports.ArtifactDir = ""
			},
			wantErr:   true,
			errString: "artifact_dir is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:  ServerConfig{Port: 8080},
				Storage: StorageConfig{Driver: StorageDriverFile, Dir: "data"},
				RabbitMQ: RabbitMQConfig{
					Host:     "localhost",
					Port:     5672,
					Exchange: ExchangeConfig{Name: "reports_exchange"},
					Queue:    QueueConfig{Name: "report_runs"},
				},
				Reports: ReportsConfig{ArtifactDir: "data/artifacts"},
			}
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	base := func() *Config {
		return &Config{
			Storage: StorageConfig{Driver: StorageDriverFile, Dir: "data"},
			RabbitMQ: RabbitMQConfig{
				Host:     "localhost",
				Port:     5672,
				Exchange: ExchangeConfig{Name: "reports_exchange"},
				Queue:    QueueConfig{Name: "report_runs"},
			},
			Scheduler: SchedulerConfig{TickInterval: 15 * time.Second, LockTTL: time.Minute},
			Worker: WorkerConfig{
				Concurrency:       4,
				QueueSize:         16,
				RunTimeout:        5 * time.Minute,
				HeartbeatInterval: 30 * time.Second,
				ShutdownTimeout:   30 * time.Second,
				MaxRetries:        3,
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "zero concurrency",
			mutate: func(c *Config) {
				c.Worker.Concurrency = 0
			},
			wantErr:   true,
			errString: "worker concurrency must be greater than 0",
		},
		{
			name: "zero queue size",
			mutate: func(c *Config) {
				c.Worker.QueueSize = 0
			},
			wantErr:   true,
			errString: "worker queue_size must be greater than 0",
		},
		{
			name: "zero run timeout",
			mutate: func(c *Config) {
				c.Worker.RunTimeout = 0
			},
			wantErr:   true,
			errString: "worker run_timeout must be greater than 0",
		},
		{
			name: "zero heartbeat interval",
			mutate: func(c *Config) {
				c.Worker.HeartbeatInterval = 0
			},
			wantErr:   true,
			errString: "worker heartbeat_interval must be greater than 0",
		},
		{
			name: "zero tick interval with scheduler enabled",
			mutate: func(c *Config) {
				c.Scheduler.TickInterval = 0
			},
			wantErr:   true,
			errString: "scheduler tick_interval must be greater than 0",
		},
		{
			name: "zero tick interval with scheduler disabled",
			mutate: func(c *Config) {
				c.Scheduler.Disabled = true
				c.Scheduler.TickInterval = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.NoError(t, err)

		err = cfg.ValidateWorkerConfig()
		require.NoError(t, err)
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
