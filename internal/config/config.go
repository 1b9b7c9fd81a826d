// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cassandra CassandraConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Pipeline  PipelineConfig
	Drive     DriveConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string `validate:"required"`
	Mode           string `validate:"oneof=debug release test"`
	ReadTimeout    int    `validate:"gte=0"`
	WriteTimeout   int    `validate:"gte=0"`
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int    `validate:"gte=1"`
}

// DSN returns the key/value connection string used by lib/pq.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the connection URL used by the pgx driver.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type CassandraConfig struct {
	Hosts          []string `validate:"required_if=Enabled true"`
	Keyspace       string   `validate:"required_if=Enabled true"`
	Consistency    string   `validate:"oneof=ONE QUORUM LOCAL_QUORUM ALL LOCAL_ONE"`
	TimeoutSeconds int      `validate:"gte=1"`
	LookbackDays   int      `validate:"gte=0"` // snapshot partitions read per run, 0 reads all
	Enabled        bool
}

type StorageConfig struct {
	Backend      string `validate:"oneof=local minio"`
	LocalDir     string `validate:"required_if=Backend local"`
	Endpoint     string `validate:"required_if=Backend minio"`
	AccessKey    string
	SecretKey    string
	Bucket       string `validate:"required_if=Backend minio"`
	Region       string
	UseSSL       bool
	CreateBucket bool
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
	TTLSeconds    int `validate:"gte=0"`
}

type PipelineConfig struct {
	Name               string `validate:"required"`
	WorkerCount        int    `validate:"gte=1,lte=256"`
	DemandWindowDays   int    `validate:"gte=1"`
	MaxSnapshotAgeDays int    `validate:"gte=0"`
	RetryAttempts      int    `validate:"gte=1,lte=10"`
	RetryBackoffMillis int    `validate:"gte=0"`
	InputPrefix        string `validate:"required"`
	OutputPrefix       string `validate:"required"`
	SnapshotSource     string `validate:"oneof=postgres cassandra storage"`
	OrderSource        string `validate:"oneof=postgres storage"`
}

// RetryBackoff returns the initial retry backoff.
func (c PipelineConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMillis) * time.Millisecond
}

type DriveConfig struct {
	CredentialsFile string
	FolderID        string
}

type LogConfig struct {
	Level  string `validate:"oneof=trace debug info warn error"`
	Format string `validate:"oneof=console json"`
}

var (
	once     sync.Once
	instance *Config
	validate = validator.New()
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		instance = fromViper()

		if instance.Storage.Backend == "local" {
			ensureDir(instance.Storage.LocalDir)
		}
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "procurement")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 25)
	viper.SetDefault("CASSANDRA_ENABLED", false)
	viper.SetDefault("CASSANDRA_HOSTS", []string{"127.0.0.1"})
	viper.SetDefault("CASSANDRA_KEYSPACE", "procurement")
	viper.SetDefault("CASSANDRA_CONSISTENCY", "LOCAL_QUORUM")
	viper.SetDefault("CASSANDRA_TIMEOUT_SECONDS", 10)
	viper.SetDefault("CASSANDRA_SNAPSHOT_LOOKBACK_DAYS", 90)
	viper.SetDefault("STORAGE_BACKEND", "local")
	viper.SetDefault("STORAGE_LOCAL_DIR", "./data")
	viper.SetDefault("STORAGE_BUCKET", "procurement")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("STORAGE_CREATE_BUCKET", false)
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_TTL_SECONDS", 300)
	viper.SetDefault("PIPELINE_NAME", "procurement")
	viper.SetDefault("PIPELINE_WORKERS", 4)
	viper.SetDefault("PIPELINE_DEMAND_WINDOW_DAYS", 1)
	viper.SetDefault("PIPELINE_MAX_SNAPSHOT_AGE_DAYS", 0)
	viper.SetDefault("PIPELINE_RETRY_ATTEMPTS", 3)
	viper.SetDefault("PIPELINE_RETRY_BACKOFF_MS", 2000)
	viper.SetDefault("PIPELINE_INPUT_PREFIX", "input")
	viper.SetDefault("PIPELINE_OUTPUT_PREFIX", "output")
	viper.SetDefault("PIPELINE_SNAPSHOT_SOURCE", "postgres")
	viper.SetDefault("PIPELINE_ORDER_SOURCE", "storage")
	viper.SetDefault("DRIVE_CREDENTIALS_FILE", "")
	viper.SetDefault("DRIVE_FOLDER_ID", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt("DB_MAX_CONNS"),
		},
		Cassandra: CassandraConfig{
			Enabled:        viper.GetBool("CASSANDRA_ENABLED"),
			Hosts:          viper.GetStringSlice("CASSANDRA_HOSTS"),
			Keyspace:       viper.GetString("CASSANDRA_KEYSPACE"),
			Consistency:    viper.GetString("CASSANDRA_CONSISTENCY"),
			TimeoutSeconds: viper.GetInt("CASSANDRA_TIMEOUT_SECONDS"),
			LookbackDays:   viper.GetInt("CASSANDRA_SNAPSHOT_LOOKBACK_DAYS"),
		},
		Storage: StorageConfig{
			Backend:      viper.GetString("STORAGE_BACKEND"),
			LocalDir:     viper.GetString("STORAGE_LOCAL_DIR"),
			Endpoint:     viper.GetString("STORAGE_ENDPOINT"),
			AccessKey:    viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:    viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:       viper.GetString("STORAGE_BUCKET"),
			Region:       viper.GetString("STORAGE_REGION"),
			UseSSL:       viper.GetBool("STORAGE_USE_SSL"),
			CreateBucket: viper.GetBool("STORAGE_CREATE_BUCKET"),
		},
		Cache: CacheConfig{
			Enabled:       viper.GetBool("CACHE_ENABLED"),
			RedisURL:      viper.GetString("REDIS_URL"),
			RedisHost:     viper.GetString("REDIS_HOST"),
			RedisPort:     viper.GetString("REDIS_PORT"),
			RedisPassword: viper.GetString("REDIS_PASSWORD"),
			RedisDB:       viper.GetInt("REDIS_DB"),
			TTLSeconds:    viper.GetInt("CACHE_TTL_SECONDS"),
		},
		Pipeline: PipelineConfig{
			Name:               viper.GetString("PIPELINE_NAME"),
			WorkerCount:        viper.GetInt("PIPELINE_WORKERS"),
			DemandWindowDays:   viper.GetInt("PIPELINE_DEMAND_WINDOW_DAYS"),
			MaxSnapshotAgeDays: viper.GetInt("PIPELINE_MAX_SNAPSHOT_AGE_DAYS"),
			RetryAttempts:      viper.GetInt("PIPELINE_RETRY_ATTEMPTS"),
			RetryBackoffMillis: viper.GetInt("PIPELINE_RETRY_BACKOFF_MS"),
			InputPrefix:        viper.GetString("PIPELINE_INPUT_PREFIX"),
			OutputPrefix:       viper.GetString("PIPELINE_OUTPUT_PREFIX"),
			SnapshotSource:     viper.GetString("PIPELINE_SNAPSHOT_SOURCE"),
			OrderSource:        viper.GetString("PIPELINE_ORDER_SOURCE"),
		},
		Drive: DriveConfig{
			CredentialsFile: viper.GetString("DRIVE_CREDENTIALS_FILE"),
			FolderID:        viper.GetString("DRIVE_FOLDER_ID"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}
}

// Validate checks the loaded values against their struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Pipeline.SnapshotSource == "cassandra" && !c.Cassandra.Enabled {
		return fmt.Errorf("invalid configuration: snapshot source cassandra requires CASSANDRA_ENABLED")
	}
	return nil
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}
}
