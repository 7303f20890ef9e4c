// Package config loads and validates the per-stage settings from the environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Lllllllleong/erpdocumentflow/internal/gcp"
	"github.com/Lllllllleong/erpdocumentflow/internal/logger"
	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/stage"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
)

const (
	BackendGCS   = "gcs"
	BackendMinio = "minio"
)

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	Backend   string `env:"STORAGE_BACKEND" validate:"oneof=gcs minio"`
	Endpoint  string `env:"MINIO_ENDPOINT" validate:"required_if=Backend minio"`
	AccessKey string `env:"MINIO_ACCESS_KEY" validate:"required_if=Backend minio"`
	SecretKey string `env:"MINIO_SECRET_KEY" validate:"required_if=Backend minio"`
	UseSSL    bool   `env:"MINIO_USE_SSL"`
}

// Minio converts the settings for storage.NewMinioStore.
func (c StorageConfig) Minio() storage.MinioConfig {
	return storage.MinioConfig{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		UseSSL:    c.UseSSL,
	}
}

// Common holds what every stage needs.
type Common struct {
	ProjectID    string `env:"PROJECT_ID" validate:"required"`
	InfoTopicID  string `env:"ONS_INFO_TOPIC_ID" validate:"required"`
	ErrorTopicID string `env:"ONS_ERROR_TOPIC_ID" validate:"required"`
	Storage      StorageConfig
	Log          logger.Config
}

// CopyPolling bounds the copy-then-delete moves of a stage.
type CopyPolling struct {
	PollInterval time.Duration `env:"COPY_POLL_INTERVAL" validate:"gt=0"`
	CopyTimeout  time.Duration `env:"COPY_TIMEOUT" validate:"gt=0"`
}

// RouterOptions turns the polling settings into router options.
func (c CopyPolling) RouterOptions() []stage.RouterOption {
	return []stage.RouterOption{
		stage.WithPollInterval(c.PollInterval),
		stage.WithCopyTimeout(c.CopyTimeout),
	}
}

// TransformConfig configures the JSON to ZIP stage.
type TransformConfig struct {
	Common
	InboundBucket      string `env:"JSON_INBOUND_BUCKET" validate:"required"`
	ReadyBucket        string `env:"ZIP_INBOUND_BUCKET" validate:"required"`
	HeaderTemplatePath string `env:"HEADER_TEMPLATE_PATH"`
	LineTemplatePath   string `env:"LINE_TEMPLATE_PATH"`
}

func (c *TransformConfig) Buckets() stage.Buckets {
	return stage.Buckets{Inbound: c.InboundBucket, Ready: c.ReadyBucket}
}

// LoadConfig configures the submission stage.
type LoadConfig struct {
	Common
	CopyPolling
	ReadyBucket      string        `env:"ZIP_INBOUND_BUCKET" validate:"required"`
	ProcessingBucket string        `env:"PROCESSING_BUCKET" validate:"required"`
	ERPURL           string        `env:"ERP_URL" validate:"required,url"`
	ERPUsername      string        `env:"ERP_USERNAME" validate:"required"`
	PasswordSecretID string        `env:"ERP_PASSWORD_SECRET_ID" validate:"required"`
	JobName          string        `env:"ERP_JOBNAME" validate:"required"`
	ParamList        string        `env:"ERP_PARAMLIST" validate:"required"`
	CallbackURL      string        `env:"ERP_CALLBACK_URL" validate:"required"`
	HTTPTimeout      time.Duration `env:"ERP_HTTP_TIMEOUT" validate:"gt=0"`
}

func (c *LoadConfig) Buckets() stage.Buckets {
	return stage.Buckets{Ready: c.ReadyBucket, Processing: c.ProcessingBucket}
}

// CallbackConfig configures the completion stage.
type CallbackConfig struct {
	Common
	CopyPolling
	ProcessingBucket string `env:"PROCESSING_BUCKET" validate:"required"`
	SucceededBucket  string `env:"SUCCEEDED_BUCKET" validate:"required"`
	FailedBucket     string `env:"FAILED_BUCKET" validate:"required"`
}

func (c *CallbackConfig) Buckets() stage.Buckets {
	return stage.Buckets{Processing: c.ProcessingBucket, Succeeded: c.SucceededBucket, Failed: c.FailedBucket}
}

// CLIConfig is what the operator CLI can use; every bucket is optional.
type CLIConfig struct {
	Storage StorageConfig
	Log     logger.Config
	Buckets stage.Buckets
}

func loadStorage() StorageConfig {
	backend := strings.ToLower(gcp.GetEnv("STORAGE_BACKEND", ""))
	if backend == "" {
		backend = BackendGCS
	}
	return StorageConfig{
		Backend:   backend,
		Endpoint:  gcp.GetEnv("MINIO_ENDPOINT", ""),
		AccessKey: gcp.GetEnv("MINIO_ACCESS_KEY", ""),
		SecretKey: gcp.GetEnv("MINIO_SECRET_KEY", ""),
		UseSSL:    gcp.GetEnvBool("MINIO_USE_SSL", false),
	}
}

func loadLog() logger.Config {
	return logger.Config{
		Level:  gcp.GetEnv("LOG_LEVEL", "info"),
		Format: gcp.GetEnv("LOG_FORMAT", "json"),
	}
}

func loadCommon() Common {
	return Common{
		ProjectID:    gcp.GetEnv("PROJECT_ID", ""),
		InfoTopicID:  gcp.GetEnv("ONS_INFO_TOPIC_ID", ""),
		ErrorTopicID: gcp.GetEnv("ONS_ERROR_TOPIC_ID", ""),
		Storage:      loadStorage(),
		Log:          loadLog(),
	}
}

func loadPolling() (CopyPolling, error) {
	interval, err := gcp.GetEnvDuration("COPY_POLL_INTERVAL", stage.DefaultPollInterval)
	if err != nil {
		return CopyPolling{}, models.ConfigurationError("COPY_POLL_INTERVAL is not a duration", err)
	}
	timeout, err := gcp.GetEnvDuration("COPY_TIMEOUT", stage.DefaultCopyTimeout)
	if err != nil {
		return CopyPolling{}, models.ConfigurationError("COPY_TIMEOUT is not a duration", err)
	}
	return CopyPolling{PollInterval: interval, CopyTimeout: timeout}, nil
}

// LoadLog reads only the logging settings, for use before anything else is loaded.
func LoadLog() logger.Config {
	return loadLog()
}

func LoadTransform() (*TransformConfig, error) {
	cfg := &TransformConfig{
		Common:             loadCommon(),
		InboundBucket:      gcp.GetEnv("JSON_INBOUND_BUCKET", ""),
		ReadyBucket:        gcp.GetEnv("ZIP_INBOUND_BUCKET", ""),
		HeaderTemplatePath: gcp.GetEnv("HEADER_TEMPLATE_PATH", ""),
		LineTemplatePath:   gcp.GetEnv("LINE_TEMPLATE_PATH", ""),
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadLoad() (*LoadConfig, error) {
	polling, err := loadPolling()
	if err != nil {
		return nil, err
	}
	httpTimeout, err := gcp.GetEnvDuration("ERP_HTTP_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, models.ConfigurationError("ERP_HTTP_TIMEOUT is not a duration", err)
	}
	cfg := &LoadConfig{
		Common:           loadCommon(),
		CopyPolling:      polling,
		ReadyBucket:      gcp.GetEnv("ZIP_INBOUND_BUCKET", ""),
		ProcessingBucket: gcp.GetEnv("PROCESSING_BUCKET", ""),
		ERPURL:           gcp.GetEnv("ERP_URL", ""),
		ERPUsername:      gcp.GetEnv("ERP_USERNAME", ""),
		PasswordSecretID: gcp.GetEnv("ERP_PASSWORD_SECRET_ID", ""),
		JobName:          gcp.GetEnv("ERP_JOBNAME", ""),
		ParamList:        gcp.GetEnv("ERP_PARAMLIST", ""),
		CallbackURL:      gcp.GetEnv("ERP_CALLBACK_URL", ""),
		HTTPTimeout:      httpTimeout,
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadCallback() (*CallbackConfig, error) {
	polling, err := loadPolling()
	if err != nil {
		return nil, err
	}
	cfg := &CallbackConfig{
		Common:           loadCommon(),
		CopyPolling:      polling,
		ProcessingBucket: gcp.GetEnv("PROCESSING_BUCKET", ""),
		SucceededBucket:  gcp.GetEnv("SUCCEEDED_BUCKET", ""),
		FailedBucket:     gcp.GetEnv("FAILED_BUCKET", ""),
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCLI reads whatever bucket settings are present. Locations without a
// bucket are skipped by the CLI.
func LoadCLI() (*CLIConfig, error) {
	cfg := &CLIConfig{
		Storage: loadStorage(),
		Log:     loadLog(),
		Buckets: stage.Buckets{
			Inbound:    gcp.GetEnv("JSON_INBOUND_BUCKET", ""),
			Ready:      gcp.GetEnv("ZIP_INBOUND_BUCKET", ""),
			Processing: gcp.GetEnv("PROCESSING_BUCKET", ""),
			Succeeded:  gcp.GetEnv("SUCCEEDED_BUCKET", ""),
			Failed:     gcp.GetEnv("FAILED_BUCKET", ""),
		},
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their environment variable so operators know what to set.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("env"); name != "" {
			return name
		}
		return field.Name
	})
	return v
}

// Validate checks cfg against its validate tags. Every offending environment
// variable is named in the returned ConfigurationError.
func Validate(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return models.ConfigurationError("invalid configuration", err)
	}

	var missing, invalid []string
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required", "required_if":
			missing = append(missing, fe.Field())
		default:
			invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	sort.Strings(missing)
	sort.Strings(invalid)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "Mandatory configuration parameters missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid configuration parameters: "+strings.Join(invalid, ", "))
	}
	return models.ConfigurationError(strings.Join(parts, "; "), nil).
		WithDetails(map[string]any{"missing": missing, "invalid": invalid})
}
