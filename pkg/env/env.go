package env

import (
	"os"
	"strings"
)

// Prefix namespaces every variable the services read.
const Prefix = "TABLESERVE_"

// Get returns TABLESERVE_<key>, then the bare key, then fallback.
func Get(key, fallback string) string {
	key = strings.TrimPrefix(key, Prefix)
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
