package env

import (
	"os"
	"strings"
)

const prefix = "STOREFRONT_"

// Get looks up STOREFRONT_<key> first, then key itself, and returns fallback
// when neither is set.
func Get(key, fallback string) string {
	for _, name := range []string{prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
