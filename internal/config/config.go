package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type SpeechConfig struct {
	Mode         string `yaml:"mode"` // deepgram, mock
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	TimeoutMS    int    `yaml:"timeout_ms"`
}

type CacheConfig struct {
	Directory    string `yaml:"directory"`
	PublicPrefix string `yaml:"public_prefix"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxEntries    int    `yaml:"max_entries"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type TranscribeConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mode      string `yaml:"mode"` // gemini, mock
	APIKey    string `yaml:"api_key"`
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type Config struct {
	ServiceName string           `yaml:"service_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Speech      SpeechConfig     `yaml:"speech"`
	Cache       CacheConfig      `yaml:"cache"`
	Journal     JournalConfig    `yaml:"journal"`
	Bus         BusConfig        `yaml:"bus"`
	Transcribe  TranscribeConfig `yaml:"transcribe"`
}

func Default() Config {
	return Config{
		ServiceName: "speakd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 6500,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Speech: SpeechConfig{
			Mode:         "deepgram",
			Endpoint:     "https://api.deepgram.com/v1/speak",
			DefaultModel: "aura-2-thalia-en",
			TimeoutMS:    30000,
		},
		Cache: CacheConfig{
			Directory:    "./static",
			PublicPrefix: "/static",
		},
		Journal: JournalConfig{
			Path:          "./data/speakd-journal.db",
			RetentionMode: "persistent",
			RetentionDays: 30,
			MaxEntries:    100000,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Transcribe: TranscribeConfig{
			Enabled:   false,
			Mode:      "gemini",
			Endpoint:  "https://generativelanguage.googleapis.com",
			Model:     "gemini-2.0-flash-lite",
			TimeoutMS: 60000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "SPEAKD_SERVICE_NAME")
	overrideString(&cfg.Environment, "SPEAKD_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SPEAKD_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SPEAKD_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SPEAKD_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SPEAKD_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SPEAKD_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Speech.Mode, "SPEAKD_SPEECH_MODE")
	overrideString(&cfg.Speech.APIKey, "DEEPGRAM_API_KEY")
	overrideString(&cfg.Speech.APIKey, "SPEAKD_SPEECH_API_KEY")
	overrideString(&cfg.Speech.Endpoint, "SPEAKD_SPEECH_ENDPOINT")
	overrideString(&cfg.Speech.DefaultModel, "SPEAKD_SPEECH_DEFAULT_MODEL")
	overrideInt(&cfg.Speech.TimeoutMS, "SPEAKD_SPEECH_TIMEOUT_MS")
	overrideString(&cfg.Cache.Directory, "SPEAKD_CACHE_DIRECTORY")
	overrideString(&cfg.Cache.PublicPrefix, "SPEAKD_CACHE_PUBLIC_PREFIX")
	overrideString(&cfg.Journal.Path, "SPEAKD_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "SPEAKD_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.RetentionDays, "SPEAKD_JOURNAL_RETENTION_DAYS")
	overrideInt(&cfg.Journal.MaxEntries, "SPEAKD_JOURNAL_MAX_ENTRIES")
	overrideBool(&cfg.Journal.VacuumOnStart, "SPEAKD_JOURNAL_VACUUM_ON_START")
	overrideBool(&cfg.Bus.Enabled, "SPEAKD_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "SPEAKD_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SPEAKD_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SPEAKD_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SPEAKD_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SPEAKD_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SPEAKD_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SPEAKD_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SPEAKD_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.Transcribe.Enabled, "SPEAKD_TRANSCRIBE_ENABLED")
	overrideString(&cfg.Transcribe.Mode, "SPEAKD_TRANSCRIBE_MODE")
	overrideString(&cfg.Transcribe.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.Transcribe.APIKey, "SPEAKD_TRANSCRIBE_API_KEY")
	overrideString(&cfg.Transcribe.Endpoint, "SPEAKD_TRANSCRIBE_ENDPOINT")
	overrideString(&cfg.Transcribe.Model, "SPEAKD_TRANSCRIBE_MODEL")
	overrideInt(&cfg.Transcribe.TimeoutMS, "SPEAKD_TRANSCRIBE_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Speech.Mode {
	case "deepgram", "mock":
	default:
		return errors.New("speech.mode must be one of deepgram|mock")
	}
	if cfg.Speech.Mode == "deepgram" {
		if cfg.Speech.APIKey == "" {
			return errors.New("speech.api_key must be set when mode=deepgram (or export DEEPGRAM_API_KEY)")
		}
		if cfg.Speech.Endpoint == "" {
			return errors.New("speech.endpoint must not be empty when mode=deepgram")
		}
	}
	if cfg.Speech.DefaultModel == "" {
		return errors.New("speech.default_model must not be empty")
	}
	if cfg.Speech.TimeoutMS <= 0 {
		return errors.New("speech.timeout_ms must be positive")
	}
	if cfg.Cache.Directory == "" {
		return errors.New("cache.directory must not be empty")
	}
	if !strings.HasPrefix(cfg.Cache.PublicPrefix, "/") {
		return errors.New("cache.public_prefix must start with /")
	}
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.Journal.RetentionMode == "persistent" && cfg.Journal.Path == "" {
		return errors.New("journal.path must not be empty when retention_mode=persistent")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Transcribe.Enabled {
		switch cfg.Transcribe.Mode {
		case "gemini", "mock":
		default:
			return errors.New("transcribe.mode must be one of gemini|mock")
		}
		if cfg.Transcribe.Mode == "gemini" {
			if cfg.Transcribe.APIKey == "" {
				return errors.New("transcribe.api_key must be set when mode=gemini (or export GEMINI_API_KEY)")
			}
			if cfg.Transcribe.Endpoint == "" {
				return errors.New("transcribe.endpoint must not be empty when mode=gemini")
			}
		}
		if cfg.Transcribe.Model == "" {
			return errors.New("transcribe.model must not be empty")
		}
	}
	return nil
}
