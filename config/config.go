package config

import (
	"errors"
	"os"
	"strconv"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPHost          string
	HTTPPort          string
	MySQLDSN          string
	LogLevel          string
	LogFormat         string
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	ResetTokenTTL     time.Duration
	VerifyTokenTTL    time.Duration
	FrontendBaseURL   string
	PasswordPolicy    PasswordPolicy
	RateLimits        RateLimits
	SMTP              SMTPConfig
	EmailQueueSize    int
	EmailSendRetries  int
}

type SMTPConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	FromName  string
	FromEmail string
}

// Quota is "Limit actions per Window" for one rate-limit bucket.
type Quota struct {
	Limit  int
	Window time.Duration
}

type RateLimits struct {
	Login              Quota
	Register           Quota
	ForgotPassword     Quota
	ResendVerification Quota
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// Violations returns every policy rule the password fails, in a fixed
// order, so callers can surface all of them at once.
func (p PasswordPolicy) Violations(password string) []string {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var violations []string
	if len(password) < p.MinLength {
		violations = append(violations, "password must be at least "+strconv.Itoa(p.MinLength)+" characters long")
	}
	if p.RequireUppercase && !hasUpper {
		violations = append(violations, "password must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		violations = append(violations, "password must contain at least one lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		violations = append(violations, "password must contain at least one number")
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, "password must contain at least one special character")
	}
	return violations
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		HTTPHost:          getEnv("HTTP_HOST", ""),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		MySQLDSN:          mysqlDSN,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		JWTSecret:         jwtSecret,
		JWTAccessTokenTTL: getDurationEnv("JWT_ACCESS_TOKEN_TTL", 60*time.Minute),
		ResetTokenTTL:     getDurationEnv("RESET_TOKEN_TTL", 1*time.Hour),
		VerifyTokenTTL:    getDurationEnv("VERIFY_TOKEN_TTL", 24*time.Hour),
		FrontendBaseURL:   getEnv("FRONTEND_BASE_URL", "http://localhost:8080"),
		PasswordPolicy:    loadPasswordPolicy(),
		RateLimits:        loadRateLimits(),
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", "localhost"),
			Port:      getIntEnv("SMTP_PORT", 587),
			User:      getEnv("SMTP_USER", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromName:  getEnv("SMTP_FROM_NAME", "AnotherMe"),
			FromEmail: getEnv("SMTP_FROM_EMAIL", "noreply@anotherme.com"),
		},
		EmailQueueSize:   getIntEnv("EMAIL_QUEUE_SIZE", 128),
		EmailSendRetries: getIntEnv("EMAIL_SEND_RETRIES", 3),
	}, nil
}

func (c *Config) DSN() string {
	return c.MySQLDSN
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 8),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", true),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", true),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", true),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", false),
	}
}

func loadRateLimits() RateLimits {
	return RateLimits{
		Login: Quota{
			Limit:  getIntEnv("RATE_LIMIT_LOGIN", 5),
			Window: getDurationEnv("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
		},
		Register: Quota{
			Limit:  getIntEnv("RATE_LIMIT_REGISTER", 3),
			Window: getDurationEnv("RATE_LIMIT_REGISTER_WINDOW", time.Hour),
		},
		ForgotPassword: Quota{
			Limit:  getIntEnv("RATE_LIMIT_FORGOT_PASSWORD", 3),
			Window: getDurationEnv("RATE_LIMIT_FORGOT_PASSWORD_WINDOW", time.Hour),
		},
		ResendVerification: Quota{
			Limit:  getIntEnv("RATE_LIMIT_RESEND_VERIFICATION", 3),
			Window: getDurationEnv("RATE_LIMIT_RESEND_VERIFICATION_WINDOW", time.Hour),
		},
	}
}
