// Package config reads the CLI settings from the environment and an optional .env file
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/takak2166/onenotecli/internal/models"
)

type Config struct {
	LogLevel     string
	LogFile      string
	SessionFile  string
	CacheFile    string
	APIURL       string
	AuthURL      string
	TokenURL     string
	RedirectAddr string
	AuthTimeout  time.Duration
	HTTPTimeout  time.Duration
}

// Load reads the configuration. A missing .env file is not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
		SessionFile:  getEnv("ONENOTE_SESSION_FILE", homeFile(".onenote.ses")),
		CacheFile:    getEnv("ONENOTE_CACHE_FILE", homeFile(".onenote.save")),
		APIURL:       getEnv("ONENOTE_API_URL", "https://www.onenote.com/api/v1.0/me/notes/"),
		AuthURL:      getEnv("ONENOTE_AUTH_URL", "https://login.live.com/oauth20_authorize.srf"),
		TokenURL:     getEnv("ONENOTE_TOKEN_URL", "https://login.live.com/oauth20_token.srf"),
		RedirectAddr: getEnv("ONENOTE_REDIRECT_ADDR", "localhost:8085"),
		AuthTimeout:  getEnvAsDuration("ONENOTE_AUTH_TIMEOUT", 5*time.Minute),
		HTTPTimeout:  getEnvAsDuration("ONENOTE_HTTP_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil && value > 0 {
		return value
	}
	return fallback
}

func homeFile(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, name)
}

// Registration is the app registration given on the command line for --auth
type Registration struct {
	ClientID     string `flag:"client_id" validate:"required"`
	ClientSecret string `flag:"client_secret" validate:"required"`
	RedirectURL  string `flag:"redirect_url" validate:"required,url"`
	Scope        string `flag:"scope" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("flag")
	})
	return v
}

// Validate reports every missing or malformed option, one per line
func (r Registration) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("--%s option is needed for authorization", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("--%s must be a valid %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "\n"))
}

// Credentials returns a credential set without tokens for r
func (r Registration) Credentials() *models.Credentials {
	return &models.Credentials{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		Scope:        r.Scope,
		RedirectURL:  r.RedirectURL,
	}
}
