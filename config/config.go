package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DefaultPort                    = "3000"
	DefaultAccessTokenExpiryMin    = 60
	DefaultExtendedAccessExpiryMin = 7 * 24 * 60
	DefaultRefreshTokenExpiryMin   = 7 * 24 * 60
	DefaultResetTokenExpiryMin     = 60
	DefaultOTPExpiryMin            = 5
	DefaultOTPLength               = 6
	MinOTPLength                   = 4
	MaxOTPLength                   = 9
	DefaultOTPSweepIntervalMin     = 10
	DefaultAppName                 = "Account"
	DefaultAppURL                  = "http://localhost:8081"
)

type Config struct {
	Env                     string
	Port                    string
	DBURL                   string
	AccessTokenSecret       string
	RefreshTokenSecret      string
	AccessExpiryMin         int
	ExtendedAccessExpiryMin int
	RefreshExpiryMin        int
	ResetTokenExpiryMin     int
	OTPExpiryMin            int
	OTPLength               int
	OTPSweepIntervalMin     int
	AppName                 string
	// AppURL is the client origin used for reset links and OAuth redirects.
	AppURL string
	// PublicURL is this server's externally visible base URL.
	PublicURL string
	RedisURL  string

	Mail  MailConfig
	OAuth OAuthConfig
}

// MailConfig selects and configures the email transport.
type MailConfig struct {
	Transport    string `env:"MAIL_TRANSPORT" envDefault:"log"`
	From         string `env:"MAIL_FROM"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	AMQPURL      string `env:"MAIL_AMQP_URL"`
	AMQPQueue    string `env:"MAIL_AMQP_QUEUE" envDefault:"mail.outbound"`
}

// OAuthConfig holds the credentials of every social provider. A provider is
// enabled only when both of its values are set.
type OAuthConfig struct {
	GoogleClientID        string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `env:"GOOGLE_CLIENT_SECRET"`
	GitHubClientID        string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret    string `env:"GITHUB_CLIENT_SECRET"`
	FacebookClientID      string `env:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret  string `env:"FACEBOOK_CLIENT_SECRET"`
	TwitterConsumerKey    string `env:"TWITTER_CONSUMER_KEY"`
	TwitterConsumerSecret string `env:"TWITTER_CONSUMER_SECRET"`
	LinkedInClientID      string `env:"LINKEDIN_CLIENT_ID"`
	LinkedInClientSecret  string `env:"LINKEDIN_CLIENT_SECRET"`
	InstagramClientID     string `env:"INSTAGRAM_CLIENT_ID"`
	InstagramClientSecret string `env:"INSTAGRAM_CLIENT_SECRET"`
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads config/.env.dev or config/.env.prod (chosen by ENV) and lets the
// process environment override anything the file sets.
func Load() *Config {
	appEnv := getEnv("ENV", "development")
	values := mergedEnv(envFileFor(appEnv))

	lookup := func(key, defaultVal string) string {
		if v := values[key]; v != "" {
			return v
		}
		return defaultVal
	}
	lookupInt := func(key string, defaultVal int) int {
		return parseInt(key, values[key], defaultVal)
	}
	require := func(key string) string {
		if v := values[key]; v != "" {
			return v
		}
		log.Fatalf("Missing required config: %s", key)
		return ""
	}

	port := lookup("PORT", DefaultPort)
	cfg := &Config{
		Env:                     appEnv,
		Port:                    port,
		DBURL:                   require("DB_URL"),
		AccessTokenSecret:       require("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret:      require("REFRESH_TOKEN_SECRET"),
		AccessExpiryMin:         lookupInt("ACCESS_TOKEN_EXPIRY", DefaultAccessTokenExpiryMin),
		ExtendedAccessExpiryMin: lookupInt("EXTENDED_ACCESS_TOKEN_EXPIRY", DefaultExtendedAccessExpiryMin),
		RefreshExpiryMin:        lookupInt("REFRESH_TOKEN_EXPIRY", DefaultRefreshTokenExpiryMin),
		ResetTokenExpiryMin:     lookupInt("RESET_TOKEN_EXPIRY", DefaultResetTokenExpiryMin),
		OTPExpiryMin:            lookupInt("OTP_EXPIRY", DefaultOTPExpiryMin),
		OTPLength:               lookupInt("OTP_LENGTH", DefaultOTPLength),
		OTPSweepIntervalMin:     lookupInt("OTP_SWEEP_INTERVAL", DefaultOTPSweepIntervalMin),
		AppName:                 lookup("APP_NAME", DefaultAppName),
		AppURL:                  firstOrigin(lookup("CORS_ORIGINS", DefaultAppURL)),
		PublicURL:               lookup("PUBLIC_URL", "http://localhost:"+port),
		RedisURL:                lookup("REDIS_URL", ""),
	}

	if cfg.OTPLength < MinOTPLength || cfg.OTPLength > MaxOTPLength {
		log.Printf("OTP_LENGTH must be between %d and %d, using default %d", MinOTPLength, MaxOTPLength, DefaultOTPLength)
		cfg.OTPLength = DefaultOTPLength
	}

	opts := env.Options{Environment: values}
	if err := env.ParseWithOptions(&cfg.Mail, opts); err != nil {
		log.Fatalf("Invalid mail config: %v", err)
	}
	if err := env.ParseWithOptions(&cfg.OAuth, opts); err != nil {
		log.Fatalf("Invalid oauth config: %v", err)
	}

	return cfg
}

func envFileFor(appEnv string) string {
	name := ".env.dev"
	if appEnv == "production" {
		name = ".env.prod"
	}
	return filepath.Join("config", name)
}

// mergedEnv returns the file's values overlaid with the process environment.
// The file is read, not loaded, so nothing leaks into os.Environ.
func mergedEnv(path string) map[string]string {
	values, err := godotenv.Read(path)
	if err != nil {
		values = map[string]string{}
	}
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if ok && val != "" {
			values[key] = val
		}
	}
	return values
}

func firstOrigin(origins string) string {
	first, _, _ := strings.Cut(origins, ",")
	return strings.TrimRight(strings.TrimSpace(first), "/")
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func parseInt(key, valStr string, defaultVal int) int {
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}
