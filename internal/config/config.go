package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort     string   `validate:"required,numeric"`
	AllowedOrigins []string `validate:"dive,required"`

	// OpenAI configuration
	OpenAIAPIKey     string `validate:"required"`
	OpenAIModel      string `validate:"required"`
	OpenAIEmbedModel string `validate:"required"`
	VectorSize       uint64 `validate:"gt=0"`

	// Qdrant configuration
	QdrantHost       string `validate:"required,hostname_rfc1123|ip"`
	QdrantPort       int    `validate:"gt=0,lte=65535"`
	QdrantAPIKey     string
	QdrantCollection string `validate:"required"`

	// Hosted collaborators
	TavilyAPIKey    string `validate:"required"`
	GoogleAPIKey    string
	FallbackBaseURL string `validate:"omitempty,url"`
	FallbackModel   string `validate:"required_with=FallbackBaseURL"`

	// Pipeline configuration
	KnowledgeTopic   string        `validate:"required"`
	KnowledgeLimit   int           `validate:"gt=0,lte=50"`
	WebSearchLimit   int           `validate:"gt=0,lte=20"`
	MaxTokens        int           `validate:"gt=0"`
	RouteTimeout     time.Duration `validate:"gt=0"`
	RetrieveTimeout  time.Duration `validate:"gt=0"`
	SynthesisTimeout time.Duration `validate:"gt=0"`
	TranslateTimeout time.Duration `validate:"gt=0"`
	RetryBackoff     time.Duration `validate:"gte=0"`

	// Ingestion configuration
	DataDir       string `validate:"required"`
	ProcessedLog  string `validate:"required"`
	ChunkSize     int    `validate:"gt=0"`
	ChunkOverlap  int    `validate:"gte=0,ltfield=ChunkSize"`
	MaxUploadSize int64  `validate:"gt=0"`
}

// LoadConfig loads configuration from a .env file, environment variables and command-line flags.
// Flags take precedence over environment variables
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load parses the given arguments on top of the environment
func Load(args []string) (*Config, error) {
	// A missing .env file is fine: real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{}
	fs := flag.NewFlagSet("telugu-qa", flag.ContinueOnError)

	serverPort := fs.String("server-port", getEnv("SERVER_PORT", "8000"), "Server port")
	allowedOrigins := fs.String("allowed-origins", getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"), "Comma separated CORS origins")
	openAIKey := fs.String("openai-key", getEnv("OPENAI_API_KEY", ""), "OpenAI API key")
	openAIModel := fs.String("openai-model", getEnv("OPENAI_MODEL", "gpt-4.1-mini"), "OpenAI model for chat completions")
	openAIEmbedModel := fs.String("openai-embed-model", getEnv("OPENAI_EMBED_MODEL", "text-embedding-3-large"), "OpenAI model for embeddings")
	vectorSize := fs.Uint64("vector-size", uint64(getEnvAsInt("VECTOR_SIZE", 3072)), "Embedding dimension of the embed model")
	qdrantHost := fs.String("qdrant-host", getEnv("QDRANT_HOST", "localhost"), "Qdrant host")
	qdrantPort := fs.Int("qdrant-port", getEnvAsInt("QDRANT_PORT", 6334), "Qdrant gRPC port (default: 6334)")
	qdrantAPIKey := fs.String("qdrant-api-key", getEnv("QDRANT_API_KEY", ""), "Qdrant API key")
	qdrantCollection := fs.String("qdrant-collection", getEnv("QDRANT_COLLECTION", "rules"), "Qdrant collection name")
	tavilyKey := fs.String("tavily-key", getEnv("TAVILY_API_KEY", ""), "Tavily search API key")
	googleKey := fs.String("google-translate-key", getEnv("GOOGLE_TRANSLATE_API_KEY", ""), "Google Cloud Translation API key")
	fallbackBaseURL := fs.String("fallback-base-url", getEnv("FALLBACK_TRANSLATOR_URL", "http://localhost:11434/v1"), "OpenAI-compatible endpoint of the local fallback translator")
	fallbackModel := fs.String("fallback-model", getEnv("FALLBACK_TRANSLATOR_MODEL", "llama3.1"), "Model served by the local fallback translator")
	knowledgeTopic := fs.String("knowledge-topic", getEnv("KNOWLEDGE_TOPIC", "building rules, G.O. 168, setbacks, permits and construction regulations"), "Topics covered by the knowledge base")
	knowledgeLimit := fs.Int("knowledge-limit", getEnvAsInt("KNOWLEDGE_LIMIT", 7), "Number of knowledge base passages to retrieve")
	webSearchLimit := fs.Int("web-search-limit", getEnvAsInt("WEB_SEARCH_LIMIT", 3), "Number of web search results to retrieve")
	maxTokens := fs.Int("max-tokens", getEnvAsInt("MAX_TOKENS", 1024), "Maximum tokens requested for an answer")
	routeTimeout := fs.Duration("route-timeout", getEnvAsDuration("ROUTE_TIMEOUT", 10*time.Second), "Timeout of the routing call")
	retrieveTimeout := fs.Duration("retrieve-timeout", getEnvAsDuration("RETRIEVE_TIMEOUT", 15*time.Second), "Timeout of a retrieval call")
	synthesisTimeout := fs.Duration("synthesis-timeout", getEnvAsDuration("SYNTHESIS_TIMEOUT", 60*time.Second), "Timeout of an answer synthesis call")
	translateTimeout := fs.Duration("translate-timeout", getEnvAsDuration("TRANSLATE_TIMEOUT", 20*time.Second), "Timeout of a translation call")
	retryBackoff := fs.Duration("retry-backoff", getEnvAsDuration("RETRY_BACKOFF", 500*time.Millisecond), "Wait before the single retry of a transient failure")
	dataDir := fs.String("data-dir", getEnv("DATA_DIR", "./data"), "Directory holding source documents")
	processedLog := fs.String("processed-log", getEnv("PROCESSED_LOG", "./processed_files.log"), "Ledger of already ingested files")
	chunkSize := fs.Int("chunk-size", getEnvAsInt("CHUNK_SIZE", 1000), "Text chunk size")
	chunkOverlap := fs.Int("chunk-overlap", getEnvAsInt("CHUNK_OVERLAP", 150), "Text chunk overlap")
	maxUploadSize := fs.Int64("max-upload-size", int64(getEnvAsInt("MAX_UPLOAD_SIZE", 32<<20)), "Maximum size of an upload request in bytes")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	// Set config values
	cfg.ServerPort = *serverPort
	cfg.AllowedOrigins = splitList(*allowedOrigins)
	cfg.OpenAIAPIKey = *openAIKey
	cfg.OpenAIModel = *openAIModel
	cfg.OpenAIEmbedModel = *openAIEmbedModel
	cfg.VectorSize = *vectorSize
	cfg.QdrantHost = *qdrantHost
	cfg.QdrantPort = *qdrantPort
	cfg.QdrantAPIKey = *qdrantAPIKey
	cfg.QdrantCollection = *qdrantCollection
	cfg.TavilyAPIKey = *tavilyKey
	cfg.GoogleAPIKey = *googleKey
	cfg.FallbackBaseURL = *fallbackBaseURL
	cfg.FallbackModel = *fallbackModel
	cfg.KnowledgeTopic = *knowledgeTopic
	cfg.KnowledgeLimit = *knowledgeLimit
	cfg.WebSearchLimit = *webSearchLimit
	cfg.MaxTokens = *maxTokens
	cfg.RouteTimeout = *routeTimeout
	cfg.RetrieveTimeout = *retrieveTimeout
	cfg.SynthesisTimeout = *synthesisTimeout
	cfg.TranslateTimeout = *translateTimeout
	cfg.RetryBackoff = *retryBackoff
	cfg.DataDir = *dataDir
	cfg.ProcessedLog = *processedLog
	cfg.ChunkSize = *chunkSize
	cfg.ChunkOverlap = *chunkOverlap
	cfg.MaxUploadSize = *maxUploadSize

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the config against its struct tags
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
