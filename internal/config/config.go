// /internal/config/config.go
package config

import (
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config is the process-wide environment configuration. Per-guild reply
// policy records in storage override the Reply* defaults.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	AIProvider       string `env:"AI_PROVIDER" envDefault:"pollinations"`
	AIModel          string `env:"AI_MODEL" envDefault:"openai"`
	AIBaseURL        string `env:"AI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AIAPIKey         string `env:"AI_API_KEY"`
	AIRetryAttempts  int    `env:"AI_RETRY_ATTEMPTS" envDefault:"3"`
	AIRetryBackoffMs int    `env:"AI_RETRY_BACKOFF_MS" envDefault:"500"`

	ReplyMode           string  `env:"REPLY_MODE" envDefault:"mention-only"`
	ReplyProbability    float64 `env:"REPLY_PROBABILITY" envDefault:"1"`
	ReplyRequireMention bool    `env:"REPLY_REQUIRE_MENTION" envDefault:"true"`
	ReplyMinDelayMs     int     `env:"REPLY_MIN_DELAY_MS" envDefault:"800"`
	ReplyMaxDelayMs     int     `env:"REPLY_MAX_DELAY_MS" envDefault:"2500"`

	MemoryMaxMessages int `env:"MEMORY_MAX_MESSAGES" envDefault:"30"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("[ERR] config: %v", err)
	}
	return cfg
}
