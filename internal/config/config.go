package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-pilot/backend/internal/analysis/boxes"
	"github.com/zhouzirui/z-pilot/backend/pkg/failure"
)

// Model providers.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// DefaultModelName 与原始部署保持一致。
const DefaultModelName = "gemini-2.0-flash-exp"

// DefaultSystemInstructions 描述 UI 自动化任务以及唯一可用的工具。
const DefaultSystemInstructions = `
You are an AI assistant helping with UI automation tasks on an Android device. Analyze the user's request and:
1. If you need visual context to proceed, make a function call 'request_screenshot' to capture the current screen
2. If you have a screenshot, identify the UI element's coordinates based on the user's request
3. Never ask the user to provide the screenshot, just make the function call to capture it
4. For multi-step tasks, break them down and handle one step at a time, building on the previous steps to achieve the final goal

Detect a single UI item. Output a json list with only one entry containing the 2D bounding box in "box_2d" and a text label in "label".
If returning coordinates, use the following format:
  - Return exactly one bounding box for the specified UI element.
  - If the element is not found, return an empty list.
`

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Storage StorageConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。缺少模型凭证时直接返回错误。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, failure.New(failure.KindConfig, "server config", err)
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, failure.New(failure.KindConfig, "ai config", err)
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, failure.New(failure.KindConfig, "storage config", err)
	}

	return &Config{Server: server, AI: ai, Storage: storage, Log: loadLogConfig()}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	return ParseAddr(os.Getenv("PORT"))
}

// ParseAddr accepts "8000", ":8000" or "127.0.0.1:8000". Empty selects port 8000.
func ParseAddr(raw string) (ServerConfig, error) {
	port := strings.TrimSpace(raw)
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider           string
	GoogleAPIKey       string
	Model              string
	SystemInstructions string
	Temperature        *float64
	MaxTokens          *int

	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkModel     string
	ArkBaseURL   string
	ArkRegion    string
}

// Validate 检查所选 provider 的必需凭证。
func (c AIConfig) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("please set GOOGLE_API_KEY environment variable")
		}
	case ProviderArk:
		if c.ArkModel == "" || (c.ArkAPIKey == "" && (c.ArkAccessKey == "" || c.ArkSecretKey == "")) {
			return fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
		}
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q (want %q or %q)", c.Provider, ProviderGemini, ProviderArk)
	}
	return nil
}

// NewChatModel 使用 Ark 配置创建一个 eino 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk {
		return nil, fmt.Errorf("chat model requested for provider %q", c.Provider)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.ArkBaseURL,
		Region:      c.ArkRegion,
		APIKey:      c.ArkAPIKey,
		AccessKey:   c.ArkAccessKey,
		SecretKey:   c.ArkSecretKey,
		Model:       c.ArkModel,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("MODEL_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("MODEL_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Provider:           strings.ToLower(getEnvOrDefault("MODEL_PROVIDER", ProviderGemini)),
		GoogleAPIKey:       strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
		Model:              getEnvOrDefault("MODEL_NAME", DefaultModelName),
		SystemInstructions: getEnvOrDefault("SYSTEM_INSTRUCTIONS", DefaultSystemInstructions),
		Temperature:        temperature,
		MaxTokens:          maxTokens,
		ArkAPIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkModel:           strings.TrimSpace(os.Getenv("ARK_MODEL")),
		ArkBaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}

	if err := cfg.Validate(); err != nil {
		return AIConfig{}, err
	}
	return cfg, nil
}

// StorageConfig 描述截图与标注结果的存放位置。
type StorageConfig struct {
	StaticDir string
	OutputDir string
	BoxOrder  boxes.Order
}

func loadStorageConfig() (StorageConfig, error) {
	staticDir := filepath.Clean(getEnvOrDefault("STATIC_DIR", "static"))
	outputDir := filepath.Clean(getEnvOrDefault("OUTPUT_DIR", filepath.Join(staticDir, "output")))

	rel, err := filepath.Rel(staticDir, outputDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return StorageConfig{}, fmt.Errorf("OUTPUT_DIR %q must be inside STATIC_DIR %q", outputDir, staticDir)
	}

	order, err := boxes.ParseOrder(strings.ToLower(strings.TrimSpace(os.Getenv("BOX_ORDER"))))
	if err != nil {
		return StorageConfig{}, fmt.Errorf("invalid BOX_ORDER: %w", err)
	}

	return StorageConfig{StaticDir: staticDir, OutputDir: outputDir, BoxOrder: order}, nil
}

// LogConfig 控制 zerolog 的级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "debug")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
