package config

import (
	iconfig "github.com/ringer-im/server/shared/config"
)

const EnvProduction = "PRODUCTION"

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Push         PushConfig
	Giphy        GiphyConfig
	SafeBrowsing SafeBrowsingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	Environment    string
}

type DatabaseConfig struct {
	URL string
}

type AuthConfig struct {
	ServerURL string
}

type PushConfig struct {
	GatewayURL string
}

type GiphyConfig struct {
	APIKey string
}

type SafeBrowsingConfig struct {
	APIKey string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           iconfig.GetEnv("HOST", "0.0.0.0"),
			Port:           iconfig.GetEnvInt("PORT", 8080),
			AllowedOrigins: iconfig.GetEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
			Environment:    iconfig.GetEnv("RUN_ENVIRONMENT", "DEVELOPMENT"),
		},
		Database: DatabaseConfig{
			URL: iconfig.GetEnv("DATABASE_URL", "postgres://localhost:5432/ringer?sslmode=disable"),
		},
		Auth: AuthConfig{
			ServerURL: iconfig.GetEnv("AUTH_SERVER_URL", ""),
		},
		Push: PushConfig{
			GatewayURL: iconfig.GetEnv("PUSH_GATEWAY_URL", "https://exp.host/--/api/v2/push/send"),
		},
		Giphy: GiphyConfig{
			APIKey: iconfig.GetEnv("GIPHY_API_KEY", ""),
		},
		SafeBrowsing: SafeBrowsingConfig{
			APIKey: iconfig.GetEnv("SAFE_BROWSING_API_KEY", ""),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}
