package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	OCR      OCRConfig
	Media    MediaConfig
	Search   SearchConfig
	API      APIConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// OCRConfig points at the external OCR extraction API.
type OCRConfig struct {
	URL      string
	Key      string
	Timeout  time.Duration
	Language string
}

// MediaConfig describes the local media library of uploaded PDFs.
// Method selects how library files are extracted: "api" uploads them to the
// OCR service, "parser" uses the built-in digital-PDF parser.
type MediaConfig struct {
	UploadDir string
	Method    string
}

type SearchConfig struct {
	SnippetLength int
	CacheTTL      time.Duration
	IncludePages  bool
	RateLimit     int
	RateWindow    time.Duration
}

type APIConfig struct {
	Key string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("OCR_API_URL", "http://localhost:8000")
	viper.SetDefault("OCR_API_TIMEOUT", "30s")
	viper.SetDefault("OCR_LANGUAGE", "tha+eng")
	viper.SetDefault("MEDIA_UPLOAD_DIR", "uploads")
	viper.SetDefault("MEDIA_METHOD", "parser")
	viper.SetDefault("SEARCH_SNIPPET_LENGTH", 200)
	viper.SetDefault("SEARCH_CACHE_TTL", "1h")
	viper.SetDefault("SEARCH_INCLUDE_PAGES", false)
	viper.SetDefault("SEARCH_RATE_LIMIT", 20)
	viper.SetDefault("SEARCH_RATE_WINDOW", "60s")

	ocrTimeout, err := time.ParseDuration(viper.GetString("OCR_API_TIMEOUT"))
	if err != nil {
		ocrTimeout = 30 * time.Second
	}
	cacheTTL, err := time.ParseDuration(viper.GetString("SEARCH_CACHE_TTL"))
	if err != nil {
		cacheTTL = time.Hour
	}
	rateWindow, err := time.ParseDuration(viper.GetString("SEARCH_RATE_WINDOW"))
	if err != nil {
		rateWindow = time.Minute
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		OCR: OCRConfig{
			URL:      viper.GetString("OCR_API_URL"),
			Key:      viper.GetString("OCR_API_KEY"),
			Timeout:  ocrTimeout,
			Language: viper.GetString("OCR_LANGUAGE"),
		},
		Media: MediaConfig{
			UploadDir: viper.GetString("MEDIA_UPLOAD_DIR"),
			Method:    viper.GetString("MEDIA_METHOD"),
		},
		Search: SearchConfig{
			SnippetLength: viper.GetInt("SEARCH_SNIPPET_LENGTH"),
			CacheTTL:      cacheTTL,
			IncludePages:  viper.GetBool("SEARCH_INCLUDE_PAGES"),
			RateLimit:     viper.GetInt("SEARCH_RATE_LIMIT"),
			RateWindow:    rateWindow,
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.API.Key == "" {
		log.Println("WARNING: API_KEY is not set, admin endpoints are open")
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database section, for the bootstrap CLI path.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	return &cfg.Database, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
