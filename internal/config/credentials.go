package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// PlaceholderKey is shipped in the sample credentials file.
const PlaceholderKey = "YOUR_OPENAI_API_KEY_HERE"

// Credentials holds the recommendation API key, read once at startup.
type Credentials struct {
	key    string
	source string
	loaded bool
}

// NewCredentials wraps a key obtained elsewhere.
func NewCredentials(key string) Credentials {
	return Credentials{key: strings.TrimSpace(key), source: "inline", loaded: true}
}

func (c Credentials) Key() string { return c.key }

// Loaded reports whether loading ran, regardless of whether a key was found.
func (c Credentials) Loaded() bool { return c.loaded }

// Source names where the key came from: an env var, a file path, or "".
func (c Credentials) Source() string { return c.source }

// Configured reports whether a real key is present.
func (c Credentials) Configured() bool {
	if !c.loaded || c.key == "" {
		return false
	}
	return c.key != PlaceholderKey && !strings.HasPrefix(c.key, "YOUR_")
}

// EnvKey returns the variable holding the key for a backend.
func EnvKey(backend string) string {
	if backend == BackendGemini {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// LoadCredentials looks up the key for backend, first in the environment
// and then in a dotenv or properties style file. A missing file is not an
// error; the result is simply not configured.
func LoadCredentials(path, backend string) (Credentials, error) {
	envKey := EnvKey(backend)
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return Credentials{key: v, source: envKey, loaded: true}, nil
	}
	empty := Credentials{loaded: true}
	if path == "" {
		return empty, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return empty, nil
		}
		return empty, fmt.Errorf("read credentials: %w", err)
	}
	for _, k := range []string{envKey, strings.ToLower(strings.ReplaceAll(envKey, "_", "."))} {
		if v := strings.TrimSpace(values[k]); v != "" {
			return Credentials{key: v, source: path, loaded: true}, nil
		}
	}
	return empty, nil
}
