package config

import (
	"os"
	"path/filepath"
	"strings"
)

// FileNames are the names Discover looks for, in order.
var FileNames = []string{
	"template-cleanup.yaml",
	".template-cleanup.yaml",
	".cleanup.yaml",
}

const (
	envConfig  = "TEMPLATE_CLEANUP_CONFIG"
	envNoCache = "TEMPLATE_CLEANUP_NO_CACHE"
)

// Discover returns the configuration path to use for dir. An explicit path
// wins, then TEMPLATE_CLEANUP_CONFIG, then the first of FileNames present in
// dir.
func Discover(dir, explicit string) (string, error) {
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(envConfig))
	}
	if explicit != "" {
		return explicit, nil
	}

	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}

	return "", &ConfigError{Path: dir, Err: ErrNotFound, Problems: []string{
		"create one with 'template-cleanup init' or pass --config",
	}}
}

// EnvNoCache returns true if TEMPLATE_CLEANUP_NO_CACHE is set to "1" or "true".
func EnvNoCache() bool {
	return envBoolTrue(envNoCache)
}

// envBoolTrue returns true if the env var is set to "1" or "true" (case-insensitive).
func envBoolTrue(key string) bool {
	v := os.Getenv(key)
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true"
}
