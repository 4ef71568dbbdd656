// Package config loads the ETL configuration bundle from environment
// variables. Defaults reproduce the Maji Ndogo farm-survey deployment the
// service was built for; every setting can be overridden per run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// defaultQuery joins the four survey feature tables on Field_ID.
const defaultQuery = `
SELECT *
FROM geographic_features
LEFT JOIN weather_features USING (Field_ID)
LEFT JOIN soil_and_crop_features USING (Field_ID)
LEFT JOIN farm_management_features USING (Field_ID)
`

const (
	defaultDatabaseURL = "sqlite:///Maji_Ndogo_farm_survey_small.db"
	defaultMappingURL  = "https://raw.githubusercontent.com/Explore-AI/Public-Data/master/Maji_Ndogo/Weather_data_field_mapping.csv"
	defaultStationsURL = "https://raw.githubusercontent.com/Explore-AI/Public-Data/master/Maji_Ndogo/Weather_station_data.csv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL string
	SQLQuery    string

	// SwapColumnA and SwapColumnB are the mutually mislabeled pair.
	SwapColumnA string
	SwapColumnB string

	// ValueCorrections maps misspelled categorical values to canonical ones.
	ValueCorrections  map[string]string
	CategoricalColumn string
	NumericColumn     string

	JoinKey           string
	WeatherMappingURL string
	WeatherStationURL string
	FetchTimeout      time.Duration

	LogLevel  string
	LogFormat string

	// Optional sink: publish the processed dataset to Kafka when brokers are set.
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool

	// Optional end-of-run metrics push.
	PushgatewayURL string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	fetchTimeoutStr := envOrDefault("FETCH_TIMEOUT", "30s")
	fetchTimeout, err := time.ParseDuration(fetchTimeoutStr)
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	swapA, swapB, err := parseSwapPair(envOrDefault("COLUMNS_TO_SWAP", "Annual_yield,Crop_type"))
	if err != nil {
		return nil, err
	}

	corrections, err := parsePairs(envOrDefault("VALUE_CORRECTIONS", "cassaval=cassava,wheatn=wheat,teaa=tea"))
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))

	cfg := &Config{
		DatabaseURL: envOrDefault("DB_URL", defaultDatabaseURL),
		SQLQuery:    envOrDefault("SQL_QUERY", defaultQuery),

		SwapColumnA: swapA,
		SwapColumnB: swapB,

		ValueCorrections:  corrections,
		CategoricalColumn: envOrDefault("CROP_COLUMN", "Crop_type"),
		NumericColumn:     envOrDefault("ELEVATION_COLUMN", "Elevation"),

		JoinKey:           envOrDefault("JOIN_KEY", "Field_ID"),
		WeatherMappingURL: envOrDefault("WEATHER_MAPPING_URL", defaultMappingURL),
		WeatherStationURL: envOrDefault("WEATHER_STATIONS_URL", defaultStationsURL),
		FetchTimeout:      fetchTimeout,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		KafkaBrokers:   brokers,
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "processed-field-records"),
		KafkaEnabled:   len(brokers) > 0,

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DB_URL is required")
	}
	if strings.TrimSpace(cfg.SQLQuery) == "" {
		return nil, errors.New("SQL_QUERY is required")
	}
	if cfg.JoinKey == "" {
		return nil, errors.New("JOIN_KEY is required")
	}
	if cfg.WeatherMappingURL == "" {
		return nil, errors.New("WEATHER_MAPPING_URL is required")
	}
	switch cfg.LogLevel {
	case "debug", "info", "disabled":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: want debug, info, or disabled", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want json or text", cfg.LogFormat)
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_SINK_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseSwapPair splits "A,B" into the two mislabeled column names.
func parseSwapPair(s string) (string, string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid COLUMNS_TO_SWAP %q: want exactly two comma-separated names", s)
	}
	a := strings.TrimSpace(parts[0])
	b := strings.TrimSpace(parts[1])
	if a == "" || b == "" || a == b {
		return "", "", fmt.Errorf("invalid COLUMNS_TO_SWAP %q: want two distinct non-empty names", s)
	}
	return a, b, nil
}

// parsePairs parses "key=value,key=value" into a map.
func parsePairs(s string) (map[string]string, error) {
	m := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return m, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("invalid VALUE_CORRECTIONS entry %q: want key=value", pair)
		}
		m[k] = v
	}
	return m, nil
}

func parseBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
