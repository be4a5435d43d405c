package model

// ================ Config ================

// GenerationModelConfig parameterizes the Gemini-backed generation client.
type GenerationModelConfig struct {
	Model       string  `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"GEMINI_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"GEMINI_TEMPERATURE" default:"0.1"`
	MaxAttempts int     `envconfig:"GEMINI_MAX_ATTEMPTS" default:"3"`
}

// WarehouseConfig describes the ClickHouse warehouse connection.
type WarehouseConfig struct {
	Addr         string `envconfig:"CLICKHOUSE_ADDR" default:"localhost:9000"`
	Database     string `envconfig:"CLICKHOUSE_DATABASE" default:"thelook"`
	Username     string `envconfig:"CLICKHOUSE_USERNAME" default:"default"`
	Password     string `envconfig:"CLICKHOUSE_PASSWORD"`
	Secure       bool   `envconfig:"CLICKHOUSE_SECURE"`
	DialTimeout  int    `envconfig:"CLICKHOUSE_DIAL_TIMEOUT" default:"5"`
	QueryTimeout int    `envconfig:"CLICKHOUSE_QUERY_TIMEOUT" default:"60"`
}

// SchemaCacheConfig describes the optional cross-query schema memoization.
type SchemaCacheConfig struct {
	TTL string `envconfig:"SCHEMA_CACHE_TTL" default:"15m"`
}
