package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hospital/hospital-backend/internal/platform/auth"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"

	AuthModeDevelopment = "development"
	AuthModeJWT         = "jwt"
	AuthModeGateway     = "gateway"
)

type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	ServiceVersion string `mapstructure:"SERVICE_VERSION"`

	StoreBackend     string `mapstructure:"STORE_BACKEND"`
	TableName        string `mapstructure:"TABLE_NAME"`
	PKName           string `mapstructure:"PK_NAME"`
	AWSRegion        string `mapstructure:"AWS_REGION"`
	DynamoDBEndpoint string `mapstructure:"DYNAMODB_ENDPOINT"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32  `mapstructure:"DB_MIN_CONNS"`

	AuthMode          string `mapstructure:"AUTH_MODE"`
	AuthIssuer        string `mapstructure:"AUTH_ISSUER"`
	AuthAudience      string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL       string `mapstructure:"AUTH_JWKS_URL"`
	CognitoUserPoolID string `mapstructure:"COGNITO_USER_POOL_ID"`
	AdminGroups       string `mapstructure:"ADMIN_GROUPS"`
	ProfileKeyClaim   string `mapstructure:"PROFILE_KEY_CLAIM"`
	RecordKeyClaim    string `mapstructure:"RECORD_KEY_CLAIM"`

	AllowedOrigin  string        `mapstructure:"ALLOWED_ORIGIN"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	AuditQueueURL string `mapstructure:"AUDIT_QUEUE_URL"`
	ReportBucket  string `mapstructure:"REPORT_BUCKET"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL", "SERVICE_VERSION",
	"STORE_BACKEND", "TABLE_NAME", "PK_NAME", "AWS_REGION", "DYNAMODB_ENDPOINT",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_MODE", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "COGNITO_USER_POOL_ID",
	"ADMIN_GROUPS", "PROFILE_KEY_CLAIM", "RECORD_KEY_CLAIM",
	"ALLOWED_ORIGIN", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"AUDIT_QUEUE_URL", "REPORT_BUCKET",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVICE_VERSION", "dev")
	v.SetDefault("STORE_BACKEND", BackendDynamoDB)
	v.SetDefault("PK_NAME", "patient_id")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("AUTH_MODE", "") // inferred, see ResolvedAuthMode
	v.SetDefault("ADMIN_GROUPS", "Admin,GroupAdmin")
	v.SetDefault("PROFILE_KEY_CLAIM", "email")
	v.SetDefault("RECORD_KEY_CLAIM", "sub")
	v.SetDefault("ALLOWED_ORIGIN", "*")
	v.SetDefault("REQUEST_TIMEOUT", "25s")
	v.SetDefault("BODY_LIMIT", "64K")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	// Older deployments name the table and region differently.
	_ = v.BindEnv("TABLE_NAME", "TABLE_NAME", "PATIENT_TABLE_NAME", "DYNAMODB_TABLE")
	_ = v.BindEnv("AWS_REGION", "AWS_REGION", "AWS_DEFAULT_REGION")
	v.SetDefault("AWS_REGION", "eu-central-1")

	// .env is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// AdminGroupList splits ADMIN_GROUPS on commas, dropping blanks.
func (c *Config) AdminGroupList() []string {
	var groups []string
	for _, g := range strings.Split(c.AdminGroups, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is set it
// wins. Otherwise:
//   - ENV=development        → "development" (unverified tokens, dev identity)
//   - issuer or user pool set → "jwt" (verify bearer tokens in-process)
//   - otherwise              → "gateway" (trust API Gateway authorizer claims)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return strings.ToLower(c.AuthMode)
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	if c.Issuer() != "" {
		return AuthModeJWT
	}
	return AuthModeGateway
}

// Issuer returns AUTH_ISSUER, or the Cognito issuer derived from the user
// pool and region.
func (c *Config) Issuer() string {
	if c.AuthIssuer != "" {
		return c.AuthIssuer
	}
	if c.CognitoUserPoolID != "" && c.AWSRegion != "" {
		return auth.CognitoIssuer(c.AWSRegion, c.CognitoUserPoolID)
	}
	return ""
}

// Validate checks that the configuration is complete for the selected
// backend and auth mode.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendDynamoDB:
		if c.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required when STORE_BACKEND is %q", BackendDynamoDB)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendDynamoDB, BackendPostgres, c.StoreBackend)
	}

	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDevelopment, AuthModeGateway:
	case AuthModeJWT:
		if c.Issuer() == "" {
			return fmt.Errorf("AUTH_ISSUER or COGNITO_USER_POOL_ID must be set when AUTH_MODE is %q", AuthModeJWT)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q, %q or %q, got %q", AuthModeDevelopment, AuthModeJWT, AuthModeGateway, mode)
	}

	if len(c.AdminGroupList()) == 0 {
		return fmt.Errorf("ADMIN_GROUPS must name at least one group")
	}
	if c.PKName == "" {
		return fmt.Errorf("PK_NAME must not be empty")
	}
	return nil
}
