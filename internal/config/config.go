package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage drivers supported by the schedule/run store.
const (
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Worker    WorkerConfig    `yaml:"worker"`
	Google    GoogleConfig    `yaml:"google"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Email     EmailConfig     `yaml:"email"`
	Reports   ReportsConfig   `yaml:"reports"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects where schedules and runs are persisted
type StorageConfig struct {
	Driver string `yaml:"driver"` // file or postgres
	Dir    string `yaml:"dir"`    // base directory for the file driver
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig holds the optional Redis connection used for schedule run locks.
// An empty addr disables locking and assumes a single scheduler instance.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// SchedulerConfig holds the due-schedule polling loop settings. Disabled turns
// the loop off on worker instances that should only consume runs.
type SchedulerConfig struct {
	Disabled     bool          `yaml:"disabled"`
	TickInterval time.Duration `yaml:"tick_interval"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	QueueSize         int           `yaml:"queue_size"`
	RunTimeout        time.Duration `yaml:"run_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
}

// GoogleConfig holds Google Sheets access settings. The service account key
// comes from GOOGLE_SERVICE_ACCOUNT_JSON or from the configured file path.
type GoogleConfig struct {
	CredentialsFile string        `yaml:"credentials_file"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`

	CredentialsJSON string `yaml:"-"`
}

// GeminiConfig holds Gemini API settings. The key comes from GEMINI_API_KEY.
type GeminiConfig struct {
	Model           string        `yaml:"model"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Temperature     float64       `yaml:"temperature"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	Disabled        bool          `yaml:"disabled"`

	APIKey string `yaml:"-"`
}

// EmailConfig holds delivery settings. SendGrid is preferred, SMTP over SSL is
// the fallback. Keys and credentials come from the environment.
type EmailConfig struct {
	FromEmail        string        `yaml:"from_email"`
	FromName         string        `yaml:"from_name"`
	DefaultRecipient string        `yaml:"default_recipient"`
	SendTimeout      time.Duration `yaml:"send_timeout"`
	SMTP             SMTPConfig    `yaml:"smtp"`

	SendGridAPIKey string `yaml:"-"`
	SMTPUser       string `yaml:"-"`
	SMTPPass       string `yaml:"-"`
}

// SMTPConfig holds the SMTP fallback endpoint
type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ReportsConfig holds report generation settings
type ReportsConfig struct {
	DefaultLanguage string        `yaml:"default_language"`
	SampleRows      int           `yaml:"sample_rows"`
	MaxCharts       int           `yaml:"max_charts"`
	ArtifactDir     string        `yaml:"artifact_dir"`
	ArtifactTTL     time.Duration `yaml:"artifact_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads the configuration file, applies defaults, and resolves secrets
// from the environment.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	config.resolveSecrets()

	return &config, nil
}

// applyDefaults fills in values a minimal config file is allowed to omit
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverFile
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}

	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = 15 * time.Second
	}
	if c.Scheduler.LockTTL == 0 {
		c.Scheduler.LockTTL = time.Minute
	}

	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.QueueSize == 0 {
		c.Worker.QueueSize = 16
	}
	if c.Worker.RunTimeout == 0 {
		c.Worker.RunTimeout = 5 * time.Minute
	}
	if c.Worker.HeartbeatInterval == 0 {
		c.Worker.HeartbeatInterval = 30 * time.Second
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 3
	}

	if c.Google.FetchTimeout == 0 {
		c.Google.FetchTimeout = 30 * time.Second
	}
	if c.Google.RetryAttempts == 0 {
		c.Google.RetryAttempts = 3
	}
	if c.Google.RetryBaseDelay == 0 {
		c.Google.RetryBaseDelay = time.Second
	}

	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.Timeout == 0 {
		c.Gemini.Timeout = time.Minute
	}
	if c.Gemini.MaxOutputTokens == 0 {
		c.Gemini.MaxOutputTokens = 2048
	}
	if c.Gemini.Temperature == 0 {
		c.Gemini.Temperature = 0.3
	}
	if c.Gemini.RetryAttempts == 0 {
		c.Gemini.RetryAttempts = 3
	}
	if c.Gemini.RetryBaseDelay == 0 {
		c.Gemini.RetryBaseDelay = time.Second
	}

	if c.Email.FromName == "" {
		c.Email.FromName = "Report Bot"
	}
	if c.Email.SendTimeout == 0 {
		c.Email.SendTimeout = 30 * time.Second
	}
	if c.Email.SMTP.Host == "" {
		c.Email.SMTP.Host = "smtp.gmail.com"
	}
	if c.Email.SMTP.Port == 0 {
		c.Email.SMTP.Port = 465
	}

	if c.Reports.DefaultLanguage == "" {
		c.Reports.DefaultLanguage = "en"
	}
	if c.Reports.SampleRows == 0 {
		c.Reports.SampleRows = 10
	}
	if c.Reports.MaxCharts == 0 {
		c.Reports.MaxCharts = 4
	}
	if c.Reports.ArtifactDir == "" {
		c.Reports.ArtifactDir = "data/artifacts"
	}
	if c.Reports.ArtifactTTL == 0 {
		c.Reports.ArtifactTTL = 24 * time.Hour
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.App.Name == "" {
		c.App.Name = "reportpilot"
	}
	if c.App.Version == "" {
		c.App.Version = "dev"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
}

// resolveSecrets pulls credentials from the environment. YAML never carries
// vendor keys. The RESEND_* names are accepted for compatibility with older
// deployments.
func (c *Config) resolveSecrets() {
	c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	c.Email.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	c.Google.CredentialsJSON = os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")

	if v := firstEnv("SENDGRID_FROM_EMAIL", "RESEND_FROM_EMAIL"); v != "" {
		c.Email.FromEmail = v
	}
	if v := firstEnv("SENDGRID_FROM_NAME", "RESEND_FROM_NAME"); v != "" {
		c.Email.FromName = v
	}
	if v := os.Getenv("DEFAULT_RECIPIENT_EMAIL"); v != "" {
		c.Email.DefaultRecipient = v
	}

	c.Email.SMTPUser = os.Getenv("SMTP_USER")
	c.Email.SMTPPass = os.Getenv("SMTP_PASS")
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.Email.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Email.SMTP.Port = port
		}
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

// firstEnv returns the first non-empty value among the named variables
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks settings both services depend on
func (c *Config) Validate() error {
	if c.Storage.Driver != StorageDriverFile && c.Storage.Driver != StorageDriverPostgres {
		return fmt.Errorf("invalid storage driver: %q (must be %q or %q)", c.Storage.Driver, StorageDriverFile, StorageDriverPostgres)
	}

	if c.Storage.Driver == StorageDriverPostgres {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}
	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}
	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}
	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

// ValidateAPIConfig checks settings the API service needs on top of the
// common ones
func (c *Config) ValidateAPIConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Reports.ArtifactDir == "" {
		return fmt.Errorf("reports artifact_dir is required")
	}

	return nil
}

// ValidateWorkerConfig checks settings the worker service needs on top of the
// common ones
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker queue_size must be greater than 0")
	}

	if c.Worker.RunTimeout <= 0 {
		return fmt.Errorf("worker run_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if !c.Scheduler.Disabled && c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler tick_interval must be greater than 0")
	}

	return nil
}
