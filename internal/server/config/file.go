package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/flagx"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Every field is a
// pointer so a key missing from the file leaves the current value untouched.
type FileConfig struct {
	EndpointAddrHTTP             *string   `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN                  *string   `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                    *string   `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration  *Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration *Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	SingleSessionLogin           *bool     `json:"single_session_login" yaml:"single_session_login"`

	CookieSecure   *bool     `json:"cookie_secure" yaml:"cookie_secure"`
	CookieDomain   *string   `json:"cookie_domain" yaml:"cookie_domain"`
	FrontendURL    *string   `json:"frontend_url" yaml:"frontend_url"`
	AppURL         *string   `json:"app_url" yaml:"app_url"`
	AllowedOrigins *[]string `json:"allowed_origins" yaml:"allowed_origins"`

	VerificationLinkTTL   *Duration `json:"verification_link_ttl" yaml:"verification_link_ttl"`
	PasswordResetTTL      *Duration `json:"password_reset_ttl" yaml:"password_reset_ttl"`
	PasswordResetThrottle *Duration `json:"password_reset_throttle" yaml:"password_reset_throttle"`

	SMTPHost     *string `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort     *int    `json:"smtp_port" yaml:"smtp_port"`
	SMTPUser     *string `json:"smtp_user" yaml:"smtp_user"`
	SMTPPassword *string `json:"smtp_password" yaml:"smtp_password"`
	MailFrom     *string `json:"mail_from" yaml:"mail_from"`

	GoogleClientID     *string `json:"google_client_id" yaml:"google_client_id"`
	GoogleClientSecret *string `json:"google_client_secret" yaml:"google_client_secret"`
	GoogleRedirectURL  *string `json:"google_redirect_url" yaml:"google_redirect_url"`
	GitHubClientID     *string `json:"github_client_id" yaml:"github_client_id"`
	GitHubClientSecret *string `json:"github_client_secret" yaml:"github_client_secret"`
	GitHubRedirectURL  *string `json:"github_redirect_url" yaml:"github_redirect_url"`

	S3RootUser     *string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       *string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`

	LogLevel        *string `json:"log_level" yaml:"log_level"`
	MetricsExporter *string `json:"metrics_exporter" yaml:"metrics_exporter"`
}

// parseFile loads the file named by -c/-config into config. Files ending in
// .yaml or .yml are decoded as YAML, anything else as JSON. Without the flag
// nothing happens; an unreadable or malformed file panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}

func (fc *FileConfig) apply(c *Config) {
	set(&c.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	set(&c.DatabaseDSN, fc.DatabaseDSN)
	set(&c.SecretKey, fc.SecretKey)
	setDuration(&c.AccessTokenValidityDuration, fc.AccessTokenValidityDuration)
	setDuration(&c.RefreshTokenValidityDuration, fc.RefreshTokenValidityDuration)
	set(&c.SingleSessionLogin, fc.SingleSessionLogin)

	set(&c.CookieSecure, fc.CookieSecure)
	set(&c.CookieDomain, fc.CookieDomain)
	set(&c.FrontendURL, fc.FrontendURL)
	set(&c.AppURL, fc.AppURL)
	set(&c.AllowedOrigins, fc.AllowedOrigins)

	setDuration(&c.VerificationLinkTTL, fc.VerificationLinkTTL)
	setDuration(&c.PasswordResetTTL, fc.PasswordResetTTL)
	setDuration(&c.PasswordResetThrottle, fc.PasswordResetThrottle)

	set(&c.SMTPHost, fc.SMTPHost)
	set(&c.SMTPPort, fc.SMTPPort)
	set(&c.SMTPUser, fc.SMTPUser)
	set(&c.SMTPPassword, fc.SMTPPassword)
	set(&c.MailFrom, fc.MailFrom)

	set(&c.GoogleClientID, fc.GoogleClientID)
	set(&c.GoogleClientSecret, fc.GoogleClientSecret)
	set(&c.GoogleRedirectURL, fc.GoogleRedirectURL)
	set(&c.GitHubClientID, fc.GitHubClientID)
	set(&c.GitHubClientSecret, fc.GitHubClientSecret)
	set(&c.GitHubRedirectURL, fc.GitHubRedirectURL)

	set(&c.S3RootUser, fc.S3RootUser)
	set(&c.S3RootPassword, fc.S3RootPassword)
	set(&c.S3Bucket, fc.S3Bucket)
	set(&c.S3Region, fc.S3Region)
	set(&c.S3BaseEndpoint, fc.S3BaseEndpoint)

	set(&c.LogLevel, fc.LogLevel)
	set(&c.MetricsExporter, fc.MetricsExporter)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
