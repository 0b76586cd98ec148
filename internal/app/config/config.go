package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type TelegramConfig struct {
	Token         string        `yaml:"token" env:"TELEGRAM_BOT_TOKEN" env-required:"true"`
	AdminID       int64         `yaml:"admin_id" env:"TELEGRAM_ADMIN_ID" env-required:"true"`
	PollTimeout   time.Duration `yaml:"poll_timeout" env:"TELEGRAM_POLL_TIMEOUT" env-default:"10s"`
	StorefrontURL string        `yaml:"storefront_url" env:"STOREFRONT_URL" env-default:"https://smallsky163.github.io/hualin-market/"`
}

type GeminiConfig struct {
	APIKey  string        `yaml:"api_key" env:"GEMINI_API_KEY" env-required:"true"`
	Model   string        `yaml:"model" env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	BaseURL string        `yaml:"base_url" env:"GEMINI_BASE_URL" env-default:"https://generativelanguage.googleapis.com"`
	Timeout time.Duration `yaml:"timeout" env:"GEMINI_TIMEOUT" env-default:"60s"`
}

type MongoDBConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	User     string `yaml:"user" env:"MONGO_USER"`
	Password string `yaml:"password" env:"MONGO_PASSWORD"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"hualin_assistant_db"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type NATSConfig struct {
	URL string `yaml:"url" env:"NATS_URL" env-default:"nats://localhost:4222"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY" env-default:"minioadmin"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY" env-default:"minioadmin"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET" env-default:"listing-photos"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type CreditsConfig struct {
	StartingBalance int64  `yaml:"starting_balance" env:"CREDITS_STARTING_BALANCE" env-default:"20"`
	DailyClaim      int64  `yaml:"daily_claim" env:"CREDITS_DAILY_CLAIM" env-default:"5"`
	ListingCost     int64  `yaml:"listing_cost" env:"CREDITS_LISTING_COST" env-default:"10"`
	SearchCost      int64  `yaml:"search_cost" env:"CREDITS_SEARCH_COST" env-default:"5"`
	Timezone        string `yaml:"timezone" env:"CREDITS_TIMEZONE" env-default:"Asia/Shanghai"`
}

type DispatcherConfig struct {
	Workers   int `yaml:"workers" env:"DISPATCHER_WORKERS" env-default:"10"`
	QueueSize int `yaml:"queue_size" env:"DISPATCHER_QUEUE_SIZE" env-default:"256"`
}

type ListingConfig struct {
	CacheTTL      time.Duration `yaml:"cache_ttl" env:"LISTING_CACHE_TTL" env-default:"1h"`
	MaxImageBytes int64         `yaml:"max_image_bytes" env:"LISTING_MAX_IMAGE_BYTES" env-default:"4194304"`
}

type LoggerConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
	TimeFormat string `yaml:"time_format" env:"LOG_TIME_FORMAT" env-default:"2006-01-02T15:04:05.000Z07:00"`
}

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	MongoDB    MongoDBConfig    `yaml:"mongo"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Credits    CreditsConfig    `yaml:"credits"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Listing    ListingConfig    `yaml:"listing"`
	Logger     LoggerConfig     `yaml:"logger"`
}

func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	err := cleanenv.ReadConfig(path, &cfg)
	if err != nil {
		if _, ok := err.(*os.PathError); ok {
			log.Printf("Warning: config file not found at %s, loading from environment variables only", path)
			if errEnv := cleanenv.ReadEnv(&cfg); errEnv != nil {
				return nil, errEnv
			}
			return &cfg, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	return cfg
}
