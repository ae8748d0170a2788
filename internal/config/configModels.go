package config

import "time"

type Config struct {
	Env         string           `yaml:"env" env:"ENV" env-default:"local"`
	HttpServer  HttpServerConfig `yaml:"httpServer"`
	BotConfig   BotConfig        `yaml:"bot"`
	CrmConfig   CrmConfig        `yaml:"crm"`
	StoreConfig StoreConfig      `yaml:"store"`
	FlowConfig  FlowConfig       `yaml:"flow"`
	configPath  string
}

type HttpServerConfig struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"0.0.0.0"`
	Port        string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"60s"`
	IdleTimeout time.Duration `yaml:"idleTimeout" env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`
}

type BotConfig struct {
	TgbotApiToken string `yaml:"tgbot_apitoken" env:"TGBOT_APITOKEN" env-required:"true"`
	// WebhookURL is registered with Telegram on startup when set.
	WebhookURL    string `yaml:"webhook_url" env:"TGBOT_WEBHOOK_URL" env-default:""`
	WebhookSecret string `yaml:"webhook_secret" env:"TGBOT_WEBHOOK_SECRET" env-default:""`
	TextsFile     string `yaml:"texts_file" env:"TGBOT_TEXTS_FILE" env-default:""`
}

type CrmConfig struct {
	BaseURL      string        `yaml:"base_url" env:"TEQTANK_API_BASE_URL"`
	CompanyID    string        `yaml:"company_id" env:"TEQTANK_COMPANY_ID"`
	InstanceType string        `yaml:"instance_type" env:"TEQTANK_INSTANCE_TYPE" env-default:"3"`
	Username     string        `yaml:"username" env:"TEQTANK_USERNAME"`
	Password     string        `yaml:"password" env:"TEQTANK_PASSWORD"`
	Timeout      time.Duration `yaml:"timeout" env:"TEQTANK_TIMEOUT" env-default:"15s"`
}

const (
	StoreDriverMemory   = "memory"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

type StoreConfig struct {
	Driver     string        `yaml:"driver" env:"STORE_DRIVER" env-default:"memory"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"STORE_SESSION_TTL" env-default:"2h"`
	// Capacity bounds the in-memory backend.
	Capacity int         `yaml:"capacity" env:"STORE_CAPACITY" env-default:"10000"`
	Redis    RedisConfig `yaml:"redis"`
	DBConfig DBConfig    `yaml:"db"`
}

type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type DBConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"postgres"`
	User     string `yaml:"user" env:"DB_USER" env-default:"user"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"password"`
	Schema   string `yaml:"schema" env:"DB_SCHEMA" env-default:"rep_auth"`
}

type FlowConfig struct {
	StateTTL          time.Duration `yaml:"state_ttl" env:"FLOW_STATE_TTL" env-default:"30m"`
	SuppressWindow    time.Duration `yaml:"suppress_window" env:"FLOW_SUPPRESS_WINDOW" env-default:"2s"`
	DeleteConcurrency int           `yaml:"delete_concurrency" env:"FLOW_DELETE_CONCURRENCY" env-default:"4"`
}
