package utils

import (
	"os"
	"strconv"
)

// EnvInt reads an int env var with a default fallback.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// EnvStr reads a string env var with a default fallback.
func EnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
