package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// LLMConfig describes the OpenAI-compatible chat endpoint used for quiz generation.
type LLMConfig struct {
    APIKey      string
    KeyPrefix   string // expected credential prefix, "gsk_" for Groq
    BaseURL     string
    Model       string
    Temperature float32
    MaxTokens   int
    Timeout     time.Duration
}

// OCRConfig drives the scanned-page fallback.
type OCRConfig struct {
    Model        string
    Scale        float64 // raster scale relative to the page's native 72 DPI
    MinTextChars int
    JPEGQuality  int
    Timeout      time.Duration
}

// LimiterConfig is the local sliding window in front of the LLM endpoint.
type LimiterConfig struct {
    MaxRequests int
    Window      time.Duration
}

// RedisConfig holds history and job status storage settings.
type RedisConfig struct {
    URL          string
    HistoryKey   string
    HistoryLimit int
    StatusTTL    time.Duration
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
    Port           string
    AllowedOrigins []string
    MaxUploadBytes int64
}

// S3Config is optional; empty keys fall back to the default AWS credential chain.
type S3Config struct {
    Region    string
    Endpoint  string
    AccessKey string
    SecretKey string
}

// QuizConfig holds quiz-taking rules.
type QuizConfig struct {
    TimeLimit   time.Duration
    PassPercent int
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    LLM     LLMConfig
    OCR     OCRConfig
    Limiter LimiterConfig
    Redis   RedisConfig
    Server  ServerConfig
    S3      S3Config
    Quiz    QuizConfig
}

// FromEnv loads configuration from environment with sensible defaults.
// A .env file in the working directory is read first when present; real
// environment variables win over it.
func FromEnv() Config {
    _ = godotenv.Load()

    cfg := Config{}

    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/pdfquiz.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_pdfquiz",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.LLM = LLMConfig{
        APIKey:      APIKey(),
        KeyPrefix:   getEnv("QUIZ_API_KEY_PREFIX", "gsk_"),
        BaseURL:     getEnv("QUIZ_API_BASE_URL", "https://api.groq.com/openai/v1"),
        Model:       getEnv("QUIZ_MODEL", "llama-3.3-70b-versatile"),
        Temperature: float32(parseFloat(getEnv("QUIZ_TEMPERATURE", "0.7"), 0.7)),
        MaxTokens:   parseInt(getEnv("QUIZ_MAX_TOKENS", "4000"), 4000),
        Timeout:     parseDuration(getEnv("QUIZ_REQUEST_TIMEOUT", "30s"), 30*time.Second),
    }

    cfg.OCR = OCRConfig{
        Model:        getEnv("OCR_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
        Scale:        parseFloat(getEnv("OCR_SCALE", "2.0"), 2.0),
        MinTextChars: parseInt(getEnv("OCR_MIN_TEXT_CHARS", "50"), 50),
        JPEGQuality:  parseInt(getEnv("OCR_JPEG_QUALITY", "85"), 85),
        Timeout:      parseDuration(getEnv("OCR_TIMEOUT", "60s"), 60*time.Second),
    }

    cfg.Limiter = LimiterConfig{
        MaxRequests: parseInt(getEnv("RATE_LIMIT_MAX_REQUESTS", "5"), 5),
        Window:      parseDuration(getEnv("RATE_LIMIT_WINDOW", "60s"), 60*time.Second),
    }

    cfg.Redis = RedisConfig{
        URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
        HistoryKey:   getEnv("HISTORY_KEY", "quiz:history"),
        HistoryLimit: parseInt(getEnv("HISTORY_LIMIT", "50"), 50),
        StatusTTL:    parseDuration(getEnv("JOB_STATUS_TTL", "24h"), 24*time.Hour),
    }

    cfg.Server = ServerConfig{
        Port:           getEnv("PORT", "8080"),
        AllowedOrigins: parseList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
        MaxUploadBytes: int64(parseInt(getEnv("MAX_UPLOAD_MB", "50"), 50)) << 20,
    }

    cfg.S3 = S3Config{
        Region:    getEnv("AWS_REGION", ""),
        Endpoint:  getEnv("S3_ENDPOINT", ""),
        AccessKey: getEnv("S3_ACCESS_KEY", ""),
        SecretKey: getEnv("S3_SECRET_KEY", ""),
    }

    cfg.Quiz = QuizConfig{
        TimeLimit:   parseDuration(getEnv("QUIZ_TIME_LIMIT", "10m"), 10*time.Minute),
        PassPercent: parseInt(getEnv("QUIZ_PASS_PERCENT", "60"), 60),
    }

    return cfg
}

// APIKey reads the LLM credential from the environment. Callers that must
// pick up a rotated key call it per request instead of caching LLMConfig.APIKey.
func APIKey() string {
    return getEnv("QUIZ_API_KEY", getEnv("GROQ_API_KEY", getEnv("VITE_APP_API_KEY", "")))
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func parseList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
