package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string // "production" | "sandbox" | "development"

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string
	SNSRegion      string
	SNSSenderID    string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	// Upstream vendor API.
	UpstreamTimeout time.Duration
	// SandboxCode is the fixed one-time-code value the vendor sandbox accepts.
	SandboxCode string
	MerchantID  string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	BillingRecords string
	Subscriptions  string
	AnonymousRefs  string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "sandbox"),

		AWSRegion:      getEnv("AWS_REGION", "eu-west-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			BillingRecords: getEnv("DYNAMO_TABLE_BILLING_RECORDS", "billing_records"),
			Subscriptions:  getEnv("DYNAMO_TABLE_SUBSCRIPTIONS", "subscriptions"),
			AnonymousRefs:  getEnv("DYNAMO_TABLE_ANONYMOUS_REFS", "anonymous_refs"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "carrier-billing-webhooks"),
		SNSRegion:    getEnv("SNS_REGION", "eu-west-1"),
		SNSSenderID:  getEnv("SNS_SENDER_ID", "BILLING"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,

		UpstreamTimeout: time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		SandboxCode:     getEnv("UPSTREAM_SANDBOX_CODE", "000000"),
		MerchantID:      getEnv("MERCHANT_ID", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// IsProduction reports whether the process targets the live vendor API.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
