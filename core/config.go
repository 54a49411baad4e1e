package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine     string
		Name       string
		User       string
		Password   string
		Host       string
		Port       int
		DisableTLS bool
	}

	// MicrosoftConfig holds the Microsoft 365 app registration.
	// Authority and GraphBaseURL default to the public cloud endpoints.
	MicrosoftConfig struct {
		ClientID     string
		ClientSecret string
		TenantID     string
		RedirectURI  string
		Authority    string
		GraphBaseURL string
	}

	CloudConfig struct {
		APIURL      string
		APIKey      string
		SyncTimeout time.Duration
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		AppName  string
		Build    string

		DefaultFromEmail  mail.Address
		NotificationEmail string
		SendgridApiKey    string
		RollbarToken      string

		OfflineMode          bool
		ConnectivityProbeURL string

		Server    ServerConfig
		Database  DatabaseConfig
		Microsoft MicrosoftConfig
		Cloud     CloudConfig
	}
)

// NewConfig loads the configuration from the environment, with an optional
// config/.env.<env> dotenv file loaded first.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("app_name", "Planning Bord")
	conf.SetDefault("build", "develop")
	conf.SetDefault("default_from_email", "noreply@localhost")
	conf.SetDefault("server_host", "0.0.0.0")
	conf.SetDefault("server_port", 8000)
	conf.SetDefault("server_debug_host", "0.0.0.0:4000")
	conf.SetDefault("server_shutdown_timeout", 5*time.Second)
	conf.SetDefault("connectivity_probe_url", "https://www.microsoft.com")
	conf.SetDefault("cloud_sync_timeout", 10*time.Second)
	conf.SetDefault("db_engine", "postgres")
	conf.SetDefault("db_port", 5432)
	conf.SetDefault("ms_tenant_id", "common")
	conf.SetDefault("ms_redirect_uri", "http://localhost:8000/auth/microsoft/callback")
	conf.SetDefault("ms_authority", "https://login.microsoftonline.com")
	conf.SetDefault("ms_graph_base_url", "https://graph.microsoft.com/v1.0")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("test_mode", true)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:    conf.GetBool("debug"),
		TestMode: conf.GetBool("test_mode"),
		Env:      env,
		AppName:  conf.GetString("app_name"),
		Build:    conf.GetString("build"),

		DefaultFromEmail:  mail.Address{Name: conf.GetString("app_name"), Address: conf.GetString("default_from_email")},
		NotificationEmail: conf.GetString("notification_email"),
		SendgridApiKey:    conf.GetString("sendgrid_api_key"),
		RollbarToken:      conf.GetString("rollbar_token"),

		OfflineMode:          conf.GetBool("offline_mode"),
		ConnectivityProbeURL: conf.GetString("connectivity_probe_url"),

		Server: ServerConfig{
			Host:            conf.GetString("server_host"),
			Port:            conf.GetInt("server_port"),
			DebugHost:       conf.GetString("server_debug_host"),
			ShutdownTimeout: conf.GetDuration("server_shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Engine:     conf.GetString("db_engine"),
			Name:       conf.GetString("db_name"),
			User:       conf.GetString("db_user"),
			Password:   conf.GetString("db_password"),
			Host:       conf.GetString("db_host"),
			Port:       conf.GetInt("db_port"),
			DisableTLS: conf.GetBool("db_disable_tls"),
		},
		Microsoft: MicrosoftConfig{
			ClientID:     conf.GetString("ms_client_id"),
			ClientSecret: conf.GetString("ms_client_secret"),
			TenantID:     conf.GetString("ms_tenant_id"),
			RedirectURI:  conf.GetString("ms_redirect_uri"),
			Authority:    conf.GetString("ms_authority"),
			GraphBaseURL: conf.GetString("ms_graph_base_url"),
		},
		Cloud: CloudConfig{
			APIURL:      conf.GetString("cloud_api_url"),
			APIKey:      conf.GetString("cloud_api_key"),
			SyncTimeout: conf.GetDuration("cloud_sync_timeout"),
		},
	}
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Configured reports whether the app registration credentials are set.
func (c MicrosoftConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// AuthBaseURL is the OAuth2 endpoint base for the configured tenant.
func (c MicrosoftConfig) AuthBaseURL() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0", c.Authority, c.TenantID)
}
