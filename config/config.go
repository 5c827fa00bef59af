// Package config loads harness settings from an optional YAML file and
// AGENT_HARNESS_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const envPrefix = "AGENT_HARNESS_"

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type PolicyMode string

const (
	// PolicyStub calls StubTool once per prompt, then finishes.
	PolicyStub   PolicyMode = "stub"
	PolicyGemini PolicyMode = "gemini"
)

type SupervisorMode string

const (
	SupervisorAllow     SupervisorMode = "allow"
	SupervisorDeny      SupervisorMode = "deny"
	SupervisorAllowList SupervisorMode = "allowlist"
)

type Config struct {
	HTTPAddr      string         `yaml:"http_addr" validate:"required,hostname_port"`
	LogLevel      string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     LogFormat      `yaml:"log_format" validate:"oneof=text json"`
	MaxSteps      int            `yaml:"max_steps" validate:"gte=0"`
	ToolTimeout   time.Duration  `yaml:"tool_timeout" validate:"gte=0"`
	Policy        PolicyMode     `yaml:"policy" validate:"oneof=stub gemini"`
	StubTool      string         `yaml:"stub_tool" validate:"required_if=Policy stub"`
	StubParams    map[string]any `yaml:"stub_params"` // arguments for StubTool, checked against its schema at startup
	GeminiAPIKey  string         `yaml:"gemini_api_key" validate:"required_if=Policy gemini"`
	GeminiModel   string         `yaml:"gemini_model" validate:"required_if=Policy gemini"`
	SystemContext string         `yaml:"system_context"`
	Supervisor    SupervisorMode `yaml:"supervisor" validate:"oneof=allow deny allowlist"`
	AllowedTools  []string       `yaml:"allowed_tools" validate:"required_if=Supervisor allowlist"`
	ToolRate      float64        `yaml:"tool_rate" validate:"gte=0"`
	ToolBurst     int            `yaml:"tool_burst" validate:"gte=0"`
	WorkspaceRoot string         `yaml:"workspace_root" validate:"required"`
	Tracing       Tracing        `yaml:"tracing"`
}

// Tracing configures span export. Spans are dropped when OTLPEndpoint is empty.
type Tracing struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"omitempty,hostname_port"`
	OTLPProtocol string `yaml:"otlp_protocol" validate:"oneof=grpc http"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

func Default() Config {
	workspaceRoot, err := os.Getwd()
	if err != nil || strings.TrimSpace(workspaceRoot) == "" {
		workspaceRoot = "."
	}
	return Config{
		HTTPAddr:      "127.0.0.1:8080",
		LogLevel:      "info",
		LogFormat:     LogFormatText,
		MaxSteps:      5,
		Policy:        PolicyStub,
		StubTool:      "list_files",
		GeminiModel:   "gemini-2.0-flash",
		Supervisor:    SupervisorAllow,
		ToolBurst:     1,
		WorkspaceRoot: workspaceRoot,
		Tracing: Tracing{
			OTLPProtocol: "grpc",
			ServiceName:  "agent-harness",
		},
	}
}

// Load starts from Default, overlays the YAML file at path (if path is not
// empty) and then the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

func (c *Config) applyEnv() error {
	if v := env("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := env("LOG_FORMAT"); v != "" {
		c.LogFormat = LogFormat(strings.ToLower(v))
	}
	if v := env("MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sMAX_STEPS: %w", envPrefix, err)
		}
		c.MaxSteps = n
	}
	if v := env("TOOL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sTOOL_TIMEOUT: %w", envPrefix, err)
		}
		c.ToolTimeout = d
	}
	if v := env("POLICY"); v != "" {
		c.Policy = PolicyMode(v)
	}
	if v := env("STUB_TOOL"); v != "" {
		c.StubTool = v
	}
	if v := env("STUB_PARAMS"); v != "" {
		params := map[string]any{}
		if err := yaml.Unmarshal([]byte(v), &params); err != nil {
			return fmt.Errorf("parse %sSTUB_PARAMS: %w", envPrefix, err)
		}
		c.StubParams = params
	}
	if v := env("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := env("GEMINI_MODEL"); v != "" {
		c.GeminiModel = v
	}
	if v := env("SUPERVISOR"); v != "" {
		c.Supervisor = SupervisorMode(v)
	}
	if v := env("ALLOWED_TOOLS"); v != "" {
		c.AllowedTools = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.AllowedTools = append(c.AllowedTools, name)
			}
		}
	}
	if v := env("TOOL_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %sTOOL_RATE: %w", envPrefix, err)
		}
		c.ToolRate = f
	}
	if v := env("TOOL_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sTOOL_BURST: %w", envPrefix, err)
		}
		c.ToolBurst = n
	}
	if v := env("WORKSPACE_ROOT"); v != "" {
		c.WorkspaceRoot = v
	}
	if v := env("OTLP_ENDPOINT"); v != "" {
		c.Tracing.OTLPEndpoint = v
	}
	if v := env("OTLP_PROTOCOL"); v != "" {
		c.Tracing.OTLPProtocol = strings.ToLower(v)
	}
	if v := env("OTLP_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sOTLP_INSECURE: %w", envPrefix, err)
		}
		c.Tracing.Insecure = b
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// SlogLevel converts LogLevel for slog handlers.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
