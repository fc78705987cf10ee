package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"

	EngineTesseract   = "tesseract"
	EngineRekognition = "rekognition"
)

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Datastore DatastoreConfig `mapstructure:"datastore"`
	Mail      MailConfig      `mapstructure:"mail"`
	OCR       OCRConfig       `mapstructure:"ocr"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type SupabaseConfig struct {
	URL            string        `mapstructure:"url"`
	AnonKey        string        `mapstructure:"anon_key"`
	ServiceKey     string        `mapstructure:"service_key"`
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type DatastoreConfig struct {
	Backend     string `mapstructure:"backend"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type MailConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type OCRConfig struct {
	Engine        string `mapstructure:"engine"`
	TesseractPath string `mapstructure:"tesseract_path"`
	Language      string `mapstructure:"language"`
	PSM           int    `mapstructure:"psm"`
	AWSRegion     string `mapstructure:"aws_region"`
	ScratchDir    string `mapstructure:"scratch_dir"`
	PlatePattern  string `mapstructure:"plate_pattern"`
}

// envBindings keeps the variable names the deployment already uses.
var envBindings = map[string]string{
	"http.addr":                "HTTP_ADDR",
	"http.cors_origins":        "CORS_ALLOWED_ORIGINS",
	"log.level":                "LOG_LEVEL",
	"log.pretty":               "LOG_PRETTY",
	"supabase.url":             "SUPABASE_URL",
	"supabase.anon_key":        "SUPABASE_KEY",
	"supabase.service_key":     "SUPABASE_SERVICE_KEY",
	"supabase.lookup_timeout":  "SUPABASE_LOOKUP_TIMEOUT",
	"supabase.request_timeout": "SUPABASE_REQUEST_TIMEOUT",
	"storage.bucket":           "STORAGE_BUCKET",
	"datastore.backend":        "DATASTORE_BACKEND",
	"datastore.dsn":            "DATABASE_URL",
	"datastore.auto_migrate":   "DB_AUTO_MIGRATE",
	"mail.address":             "EMAIL_ADDRESS",
	"mail.password":            "EMAIL_PASSWORD",
	"mail.host":                "SMTP_SERVER",
	"mail.port":                "SMTP_PORT",
	"mail.timeout":             "SMTP_TIMEOUT",
	"ocr.engine":               "OCR_ENGINE",
	"ocr.tesseract_path":       "TESSERACT_PATH",
	"ocr.language":             "OCR_LANGUAGE",
	"ocr.psm":                  "OCR_PSM",
	"ocr.aws_region":           "AWS_REGION",
	"ocr.scratch_dir":          "SCRATCH_DIR",
	"ocr.plate_pattern":        "PLATE_PATTERN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.anon_key", "")
	v.SetDefault("supabase.service_key", "")
	v.SetDefault("supabase.lookup_timeout", 5*time.Second)
	v.SetDefault("supabase.request_timeout", 30*time.Second)
	v.SetDefault("storage.bucket", "reportes-evidencia")
	v.SetDefault("datastore.backend", BackendREST)
	v.SetDefault("datastore.dsn", "")
	v.SetDefault("datastore.auto_migrate", true)
	v.SetDefault("mail.address", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.timeout", 15*time.Second)
	v.SetDefault("ocr.engine", EngineTesseract)
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.language", "spa")
	v.SetDefault("ocr.psm", 7)
	v.SetDefault("ocr.aws_region", "us-east-1")
	v.SetDefault("ocr.scratch_dir", os.TempDir())
	v.SetDefault("ocr.plate_pattern", "")
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Supabase.URL = strings.TrimRight(cfg.Supabase.URL, "/")
	cfg.Datastore.Backend = strings.ToLower(cfg.Datastore.Backend)
	cfg.OCR.Engine = strings.ToLower(cfg.OCR.Engine)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	// Evidence always goes to Supabase Storage.
	if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
		return errors.New("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	switch c.Datastore.Backend {
	case BackendREST:
		if c.Supabase.AnonKey == "" {
			return errors.New("SUPABASE_KEY is required for the rest datastore backend")
		}
	case BackendPostgres:
		if c.Datastore.DSN == "" {
			return errors.New("DATABASE_URL is required for the postgres datastore backend")
		}
	default:
		return fmt.Errorf("unknown datastore backend %q", c.Datastore.Backend)
	}

	switch c.OCR.Engine {
	case EngineTesseract, EngineRekognition:
	default:
		return fmt.Errorf("unknown OCR engine %q", c.OCR.Engine)
	}

	if c.Storage.Bucket == "" {
		return errors.New("STORAGE_BUCKET must not be empty")
	}
	return nil
}
