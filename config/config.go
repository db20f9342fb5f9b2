package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
	"pitch-recorder/constant"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Webhook     Webhook       `yaml:"webhook"`
	Capture     Capture       `yaml:"capture"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port" validate:"required"`
	Workers  int    `yaml:"workers" validate:"min=1"`
}

type Webhook struct {
	URL        string        `yaml:"url" validate:"required,url"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" validate:"min=1"`
}

// Capture selects the ffmpeg input used by the server-side microphone,
// e.g. pulse/default on Linux or avfoundation/:0 on macOS.
type Capture struct {
	InputFormat string        `yaml:"input_format"`
	Device      string        `yaml:"device"`
	Timeslice   time.Duration `yaml:"timeslice" validate:"gt=0"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workers", 2)
	v.SetDefault("webhook.timeout", constant.DefaultAttemptTimeout)
	v.SetDefault("webhook.max_retries", constant.DefaultMaxRetries)
	v.SetDefault("capture.timeslice", constant.DefaultTimeslice)
	v.SetDefault("rabbitmq_port", 5672)
	v.SetDefault("rabbitmq_kind", "direct")
}

// Load reads config.yaml from path. Keys may be overridden by environment
// variables with dots replaced by underscores (WEBHOOK_URL). A backend whose
// address is empty is left nil.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		MinIOBucket: v.GetString("minio.bucket"),
		App: App{
			Environment: v.GetString("app.environment"),
			Host:        v.GetString("app.host"),
			Protocol:    v.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: v.GetString("server.port"),
			Workers:  v.GetInt("server.workers"),
		},
		Webhook: Webhook{
			URL:        v.GetString("webhook.url"),
			Timeout:    v.GetDuration("webhook.timeout"),
			MaxRetries: v.GetInt("webhook.max_retries"),
		},
		Capture: Capture{
			InputFormat: v.GetString("capture.input_format"),
			Device:      v.GetString("capture.device"),
			Timeslice:   v.GetDuration("capture.timeslice"),
		},
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if dsn := v.GetString("postgresql_host"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		cfg.DB = db
	}

	if host := v.GetString("rabbitmq_host"); host != "" {
		cfg.Queue = &RabbitMQ{
			Host: host,
			Port: v.GetInt("rabbitmq_port"),
			User: v.GetString("rabbitmq_user"),
			Pass: v.GetString("rabbitmq_pass"),
			Kind: v.GetString("rabbitmq_kind"),
		}
	}

	if endpoint := v.GetString("minio.url"); endpoint != "" {
		if cfg.MinIOBucket == "" {
			return nil, errors.New("invalid config: minio.bucket is required when minio.url is set")
		}
		minioClient, err := minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(v.GetString("minio.access_id"), v.GetString("minio.secret_access_key"), ""),
			Secure: false,
		})
		if err != nil {
			return nil, err
		}
		cfg.Storage = minioClient
	}

	return cfg, nil
}
