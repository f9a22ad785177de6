package config

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	CORSOrigin  string `envconfig:"CORS_ORIGIN" default:"http://localhost:5173"`

	Store struct {
		// Driver: postgres, mongo или memory.
		Driver    string `envconfig:"DOCSTORE_DRIVER" default:"postgres"`
		MongoURI  string `envconfig:"MONGO_URI"`
		MongoDB   string `envconfig:"MONGO_DB" default:"xpost"`
		ConnRetry uint   `envconfig:"DOCSTORE_CONNECT_ATTEMPTS" default:"5"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Generator struct {
		BaseURL string        `envconfig:"GENERATOR_BASE_URL" default:"https://x-postgenerator-backend-production.up.railway.app"`
		Timeout time.Duration `envconfig:"GENERATOR_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Auth struct {
		JWTSecret  string        `envconfig:"JWT_SECRET"`
		SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"720h"`
		Google     struct {
			ClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
			ClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
			RedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL"`
		} `envconfig:""`
		SuccessRedirect string `envconfig:"OAUTH_SUCCESS_REDIRECT" default:"http://localhost:5173/dashboard"`
		FailureRedirect string `envconfig:"OAUTH_FAILURE_REDIRECT" default:"http://localhost:5173/login"`
	} `envconfig:""`

	Threads struct {
		RemoteTimeout time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s"`
		ErrorTTL      time.Duration `envconfig:"DELETE_ERROR_TTL" default:"3s"`
		PageIdleTTL   time.Duration `envconfig:"THREADS_PAGE_IDLE_TTL" default:"1h"`
	} `envconfig:""`

	Welcome struct {
		MemoTTL time.Duration `envconfig:"WELCOME_MEMO_TTL" default:"24h"`
	} `envconfig:""`
}

// Load загружает конфиг из .env (если есть) и окружения.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("не удалось прочитать .env: %v", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
