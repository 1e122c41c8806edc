package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const defaultConfigPath = "./config/config.yml"

type Config struct {
	Server     ServerConfig
	Postgres   DBConfig
	Redis      RedisConfig
	S3         S3Config
	Storage    StorageConfig
	Logger     Logger
	Worker     WorkerConfig
	Processing ProcessingConfig
}

type ServerConfig struct {
	AppVersion   string
	Port         string `validate:"required"`
	Mode         string
	SigningKey   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CorsOrigins  []string
}

type WorkerConfig struct {
	WorkerCount      int     `validate:"gte=1"`
	MaxCPUUsage      float64 `validate:"gt=0,lte=100"`
	CPUCheckInterval time.Duration
	DequeueTimeout   time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	PgDriver string
	SSLMode  string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	UseTLS        bool
	JobQueueKey   string
	LeasePrefix   string
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

type StorageConfig struct {
	Driver     string `validate:"oneof=local s3"`
	Root       string
	ScratchDir string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

type ProcessingConfig struct {
	FFmpegPath         string
	FFprobePath        string
	Qualities          []int `validate:"dive,oneof=360 480 720 1080"`
	QueueTimeout       time.Duration
	HeartbeatTimeout   time.Duration `validate:"gtfield=HeartbeatInterval"`
	HeartbeatInterval  time.Duration `validate:"lte=30s"`
	ProbeTimeout       time.Duration
	StuckSweepSchedule string
	LogRetention       int
	HLSEnabled         bool
	SignedURLTTL       time.Duration
}

// IsProduction reports whether signed stream URLs are enforced for every video.
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production"
}

// GetConfigPath picks the config file, CONFIG_PATH wins over the default location.
func GetConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	c.applyDefaults()
	if err := validator.New().Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if len(c.Server.CorsOrigins) == 0 {
		c.Server.CorsOrigins = []string{"*"}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "./storage"
	}
	if c.Storage.ScratchDir == "" {
		c.Storage.ScratchDir = os.TempDir()
	}
	if c.Redis.JobQueueKey == "" {
		c.Redis.JobQueueKey = "video_jobs"
	}
	if c.Redis.LeasePrefix == "" {
		c.Redis.LeasePrefix = "lease:video:"
	}
	if c.Worker.WorkerCount == 0 {
		c.Worker.WorkerCount = 1
	}
	if c.Worker.MaxCPUUsage == 0 {
		c.Worker.MaxCPUUsage = 80
	}
	if c.Worker.CPUCheckInterval == 0 {
		c.Worker.CPUCheckInterval = 10 * time.Second
	}
	if c.Worker.DequeueTimeout == 0 {
		c.Worker.DequeueTimeout = 5 * time.Second
	}
	p := &c.Processing
	if p.FFmpegPath == "" {
		p.FFmpegPath = "ffmpeg"
	}
	if p.FFprobePath == "" {
		p.FFprobePath = "ffprobe"
	}
	if len(p.Qualities) == 0 {
		p.Qualities = []int{360, 480, 720, 1080}
	}
	if p.QueueTimeout == 0 {
		p.QueueTimeout = 2 * time.Minute
	}
	if p.HeartbeatTimeout == 0 {
		p.HeartbeatTimeout = 2 * time.Minute
	}
	if p.HeartbeatInterval == 0 {
		p.HeartbeatInterval = 15 * time.Second
	}
	if p.ProbeTimeout == 0 {
		p.ProbeTimeout = 30 * time.Second
	}
	if p.StuckSweepSchedule == "" {
		p.StuckSweepSchedule = "@every 5m"
	}
	if p.LogRetention == 0 {
		p.LogRetention = 100
	}
	if p.SignedURLTTL == 0 {
		p.SignedURLTTL = 6 * time.Hour
	}
}
