// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"
	Timezone    string // IANA zone calendar dates are read in

	// GCP settings (required in production)
	GCPProject string
	SecretID   string

	// Optional backing stores
	DatabaseURL      string   // Postgres catalog
	CatalogFile      string   // JSON catalog, used when DatabaseURL is empty
	RedisURL         string   // shared id-map cache
	MinClientVersion string   // oldest storefront build allowed to mutate orders
	AllowedOrigins   []string // browser origins allowed by CORS

	// Rental platform settings (loaded from secrets)
	Rental RentalConfig
}

// RentalConfig contains the rental platform account settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type RentalConfig struct {
	CompanySlug     string `json:"company_slug"`
	APIBaseURL      string `json:"api_base_url"` // Derived from CompanySlug if not set
	ShopURL         string `json:"shop_url"`     // Derived from CompanySlug if not set
	APIKey          string `json:"api_key"`
	ProxyToken      string `json:"proxy_token"`
	WidgetScriptURL string `json:"widget_script_url,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:             envOrDefault("PORT", "8080"),
		Environment:      envOrDefault("ENVIRONMENT", "development"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		Timezone:         envOrDefault("TIMEZONE", "UTC"),
		GCPProject:       os.Getenv("GCP_PROJECT"),
		SecretID:         envOrDefault("SECRET_ID", "rental-config"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		CatalogFile:      os.Getenv("CATALOG_FILE"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MinClientVersion: os.Getenv("MIN_CLIENT_VERSION"),
		AllowedOrigins:   splitList(os.Getenv("ALLOWED_ORIGINS")),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading rental config: %w", err)
	}

	cfg.Rental.deriveURLs()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port             string       `json:"port"`
		Environment      string       `json:"environment"`
		LogLevel         string       `json:"log_level"`
		Timezone         string       `json:"timezone"`
		DatabaseURL      string       `json:"database_url"`
		CatalogFile      string       `json:"catalog_file"`
		RedisURL         string       `json:"redis_url"`
		MinClientVersion string       `json:"min_client_version"`
		AllowedOrigins   []string     `json:"allowed_origins"`
		Rental           RentalConfig `json:"rental"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:             withDefault(fileConfig.Port, "8080"),
		Environment:      withDefault(fileConfig.Environment, "development"),
		LogLevel:         withDefault(fileConfig.LogLevel, "info"),
		Timezone:         withDefault(fileConfig.Timezone, "UTC"),
		DatabaseURL:      fileConfig.DatabaseURL,
		CatalogFile:      fileConfig.CatalogFile,
		RedisURL:         fileConfig.RedisURL,
		MinClientVersion: fileConfig.MinClientVersion,
		AllowedOrigins:   fileConfig.AllowedOrigins,
		Rental:           fileConfig.Rental,
	}

	cfg.Rental.deriveURLs()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches the rental config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Rental); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadFromEnv reads the rental config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() {
	c.Rental = RentalConfig{
		CompanySlug:     os.Getenv("RENTAL_COMPANY_SLUG"),
		APIBaseURL:      os.Getenv("RENTAL_API_BASE_URL"),
		ShopURL:         os.Getenv("RENTAL_SHOP_URL"),
		APIKey:          os.Getenv("RENTAL_API_KEY"),
		ProxyToken:      os.Getenv("RENTAL_PROXY_TOKEN"),
		WidgetScriptURL: os.Getenv("RENTAL_WIDGET_SCRIPT_URL"),
	}
}

// deriveURLs fills platform URLs from the company slug where not set.
func (r *RentalConfig) deriveURLs() {
	if r.CompanySlug == "" {
		return
	}
	if r.APIBaseURL == "" {
		r.APIBaseURL = "https://" + r.CompanySlug + ".booqable.com"
	}
	if r.ShopURL == "" {
		r.ShopURL = "https://" + r.CompanySlug + ".booqable.shop"
	}
	if r.WidgetScriptURL == "" {
		r.WidgetScriptURL = "https://" + r.CompanySlug + ".assets.booqable.com/v2/booqable.js"
	}
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Rental.APIBaseURL == "" {
		return fmt.Errorf("company_slug or api_base_url is required")
	}
	if c.Rental.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.Rental.ProxyToken == "" {
		return fmt.Errorf("proxy_token is required")
	}

	for name, raw := range map[string]string{
		"api_base_url":      c.Rental.APIBaseURL,
		"shop_url":          c.Rental.ShopURL,
		"widget_script_url": c.Rental.WidgetScriptURL,
	} {
		if raw == "" {
			continue
		}
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	return nil
}

// validateURL requires an absolute http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// Location returns the zone calendar dates are interpreted in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ShopDomain returns the host of the hosted shop, used in logs.
func (c *Config) ShopDomain() string {
	return extractDomain(c.Rental.ShopURL)
}

// extractDomain parses the domain from a URL string.
func extractDomain(shopURL string) string {
	u, err := url.Parse(shopURL)
	if err != nil {
		// Fallback: strip protocol prefix manually
		domain := strings.TrimPrefix(shopURL, "https://")
		domain = strings.TrimPrefix(domain, "http://")
		return strings.Split(domain, "/")[0]
	}
	return u.Host
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
