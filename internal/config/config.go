// Package config loads the application settings from defaults, command line
// flags and environment variables (optionally seeded from an env file) and
// validates the result.
package config

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/patric-chuzhbe/profilesite/internal/models"
)

// EnvFileName is the env file read before the process environment is parsed.
// A plain .env is used as a fallback.
const EnvFileName = "appsettings.env"

// Config holds every setting of the application.
type Config struct {
	RunAddr  string `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel string `env:"LOG_LEVEL" validate:"loglevel"`

	// Environment selects the deployment variant: "0" is local disk with the
	// *_LOCAL database credentials, "1" is S3 with the remote credentials.
	Environment string `env:"ENVIRONMENT" validate:"environment"`

	DatabaseDSN         string        `env:"DATABASE_DSN"`
	DBHost              string        `env:"DB_HOST"`
	DBUser              string        `env:"DB_USER"`
	DBPassword          string        `env:"DB_PASSWORD"`
	DBName              string        `env:"DB_NAME"`
	DBHostLocal         string        `env:"DB_HOST_LOCAL"`
	DBUserLocal         string        `env:"DB_USER_LOCAL"`
	DBPasswordLocal     string        `env:"DB_PASSWORD_LOCAL"`
	DBNameLocal         string        `env:"DB_NAME_LOCAL"`
	DBSSLMode           string        `env:"DB_SSL_MODE"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" validate:"filepath"`

	S3Bucket           string `env:"S3_BUCKET" validate:"required_if=Environment 1"`
	S3Region           string `env:"S3_REGION" validate:"required_if=Environment 1"`
	S3Endpoint         string `env:"S3_ENDPOINT" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	SessionSecretKey  string        `env:"SECRET_KEY" validate:"required"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" validate:"required"`
	SessionLifetime   time.Duration `env:"SESSION_LIFETIME"`

	StaticDir     string `env:"STATIC_DIR" validate:"required"`
	StaticURLBase string `env:"STATIC_URL_BASE" validate:"required"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" validate:"gt=0"`
	BcryptCost    int    `env:"BCRYPT_COST" validate:"gte=4,lte=31"`

	// TrustedSubnet limits /metrics to clients from this CIDR when set.
	TrustedSubnet string `env:"TRUSTED_SUBNET" validate:"omitempty,cidr"`
}

var defaultConfig = Config{
	RunAddr:             ":5000",
	LogLevel:            "info",
	Environment:         models.EnvironmentRemote,
	DBSSLMode:           "disable",
	DBConnectionTimeout: 10 * time.Second,
	SessionSecretKey:    "your_default_secret_key",
	SessionCookieName:   "session",
	SessionLifetime:     24 * time.Hour,
	StaticDir:           "static",
	StaticURLBase:       "/static",
	MaxUploadSize:       10 << 20,
	BcryptCost:          10,
}

// IsLocal reports whether the local deployment variant is selected.
func (c *Config) IsLocal() bool {
	return c.Environment == models.EnvironmentLocal
}

// UploadsDir is the directory under the static root where images are kept.
func (c *Config) UploadsDir() string {
	return c.StaticDir + "/uploads"
}

// DSN returns the explicit DATABASE_DSN, or a postgres URL built from the
// credential set of the active environment. An empty string means no
// database host is configured for that environment.
func (c *Config) DSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}

	host, usr, password, name := c.DBHost, c.DBUser, c.DBPassword, c.DBName
	if c.IsLocal() {
		host, usr, password, name = c.DBHostLocal, c.DBUserLocal, c.DBPasswordLocal, c.DBNameLocal
	}
	if host == "" {
		return ""
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(usr, password),
		Host:     host,
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": []string{c.DBSSLMode}}.Encode(),
	}

	return dsn.String()
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func validateEnvironment(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	return value == models.EnvironmentLocal || value == models.EnvironmentRemote
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("environment", validateEnvironment)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption configures New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	envFiles            []string
}

// WithDisableFlagsParsing skips command line parsing; used by tests.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithEnvFiles replaces the env files loaded before the environment is parsed.
func WithEnvFiles(fileNames ...string) InitOption {
	return func(options *initOptions) {
		options.envFiles = fileNames
	}
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func (c *Config) parseFlags() error {
	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.StringVar(&c.RunAddr, "a", c.RunAddr, "address and port to run server")
	flagSet.StringVar(&c.LogLevel, "l", c.LogLevel, "logger level")
	flagSet.StringVar(&c.Environment, "e", c.Environment, "deployment environment: 0 - local, 1 - remote")
	flagSet.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "a string with the database connection details")
	flagSet.StringVar(&c.DBFileName, "f", c.DBFileName, "JSON file name with the users database")
	flagSet.StringVar(&c.SessionSecretKey, "s", c.SessionSecretKey, "session cookie signing secret")
	flagSet.StringVar(&c.TrustedSubnet, "t", c.TrustedSubnet, "CIDR allowed to read /metrics")

	return flagSet.Parse(os.Args[1:])
}

func (c *Config) applyEnv(valuesFromEnv *Config) {
	overrideString := func(target *string, value string) {
		if value != "" {
			*target = value
		}
	}

	overrideString(&c.RunAddr, valuesFromEnv.RunAddr)
	overrideString(&c.LogLevel, valuesFromEnv.LogLevel)
	overrideString(&c.Environment, valuesFromEnv.Environment)
	overrideString(&c.DatabaseDSN, valuesFromEnv.DatabaseDSN)
	overrideString(&c.DBHost, valuesFromEnv.DBHost)
	overrideString(&c.DBUser, valuesFromEnv.DBUser)
	overrideString(&c.DBPassword, valuesFromEnv.DBPassword)
	overrideString(&c.DBName, valuesFromEnv.DBName)
	overrideString(&c.DBHostLocal, valuesFromEnv.DBHostLocal)
	overrideString(&c.DBUserLocal, valuesFromEnv.DBUserLocal)
	overrideString(&c.DBPasswordLocal, valuesFromEnv.DBPasswordLocal)
	overrideString(&c.DBNameLocal, valuesFromEnv.DBNameLocal)
	overrideString(&c.DBSSLMode, valuesFromEnv.DBSSLMode)
	overrideString(&c.DBFileName, valuesFromEnv.DBFileName)
	overrideString(&c.S3Bucket, valuesFromEnv.S3Bucket)
	overrideString(&c.S3Region, valuesFromEnv.S3Region)
	overrideString(&c.S3Endpoint, valuesFromEnv.S3Endpoint)
	overrideString(&c.AWSAccessKeyID, valuesFromEnv.AWSAccessKeyID)
	overrideString(&c.AWSSecretAccessKey, valuesFromEnv.AWSSecretAccessKey)
	overrideString(&c.SessionSecretKey, valuesFromEnv.SessionSecretKey)
	overrideString(&c.SessionCookieName, valuesFromEnv.SessionCookieName)
	overrideString(&c.StaticDir, valuesFromEnv.StaticDir)
	overrideString(&c.StaticURLBase, valuesFromEnv.StaticURLBase)
	overrideString(&c.TrustedSubnet, valuesFromEnv.TrustedSubnet)

	if valuesFromEnv.DBConnectionTimeout != 0 {
		c.DBConnectionTimeout = valuesFromEnv.DBConnectionTimeout
	}
	if valuesFromEnv.SessionLifetime != 0 {
		c.SessionLifetime = valuesFromEnv.SessionLifetime
	}
	if valuesFromEnv.MaxUploadSize != 0 {
		c.MaxUploadSize = valuesFromEnv.MaxUploadSize
	}
	if valuesFromEnv.BcryptCost != 0 {
		c.BcryptCost = valuesFromEnv.BcryptCost
	}
}

// New builds the configuration. Priority, lowest first: defaults, environment
// (including variables loaded from the env files), command line flags.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
		envFiles:            []string{EnvFileName, ".env"},
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	for _, fileName := range options.envFiles {
		if err := godotenv.Load(fileName); err != nil {
			log.Printf("Unable to load %s file: %v", fileName, err)
		}
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/New(): error while `env.Parse()` calling: %w", err)
	}
	values.applyEnv(&valuesFromEnv)

	if !options.disableFlagsParsing {
		if err := values.parseFlags(); err != nil {
			return nil, fmt.Errorf("in internal/config/config.go/New(): error while `values.parseFlags()` calling: %w", err)
		}
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
