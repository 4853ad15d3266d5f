package config

import (
	"fmt"
	"strconv"
	"time"

	"plantshop-backend/internal/infrastructure/database"
)

// LoadDatabaseConfig reads DB_* variables into a database.DBConfig.
// Unlike Load, malformed numbers and durations are reported instead of defaulted.
func LoadDatabaseConfig() (*database.DBConfig, error) {
	ints := map[string]int{
		"DB_PORT":            5432,
		"DB_MAX_CONNECTIONS": 25,
		"DB_MIN_CONNECTIONS": 5,
		"DB_MAX_RETRIES":     5,
	}
	for key, def := range ints {
		value, err := strconv.Atoi(getEnv(key, strconv.Itoa(def)))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		ints[key] = value
	}

	durations := map[string]time.Duration{
		"DB_MAX_CONN_LIFETIME":   5 * time.Minute,
		"DB_MAX_CONN_IDLE_TIME":  time.Minute,
		"DB_HEALTH_CHECK_PERIOD": time.Minute,
		"DB_RETRY_DELAY":         time.Second,
		"DB_CONNECT_TIMEOUT":     10 * time.Second,
	}
	for key, def := range durations {
		value, err := time.ParseDuration(getEnv(key, def.String()))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = value
	}

	return &database.DBConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              ints["DB_PORT"],
		Username:          getEnv("DB_USER", "plantshop"),
		Password:          getEnv("DB_PASSWORD", "secret"),
		DBName:            getEnv("DB_NAME", "plantshop_dev"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(ints["DB_MAX_CONNECTIONS"]),
		MinConns:          int32(ints["DB_MIN_CONNECTIONS"]),
		MaxConnLifetime:   durations["DB_MAX_CONN_LIFETIME"],
		MaxConnIdleTime:   durations["DB_MAX_CONN_IDLE_TIME"],
		HealthCheckPeriod: durations["DB_HEALTH_CHECK_PERIOD"],
		MaxRetries:        ints["DB_MAX_RETRIES"],
		RetryDelay:        durations["DB_RETRY_DELAY"],
		ConnectTimeout:    durations["DB_CONNECT_TIMEOUT"],
	}, nil
}
