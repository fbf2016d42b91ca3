package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Source looks up a single setting by its environment-style key.
type Source interface {
	Lookup(key string) (string, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(key string) (string, bool)

func (f SourceFunc) Lookup(key string) (string, bool) {
	return f(key)
}

type envSource struct{}

// Env returns a Source backed by the process environment. The first call
// loads a .env file if one is present.
func Env() Source {
	return envSource{}
}

func (envSource) Lookup(key string) (string, bool) {
	loadDotEnvIfPresent()
	return os.LookupEnv(key)
}

// MapSource is a fixed set of settings, mostly useful in tests.
type MapSource map[string]string

func (m MapSource) Lookup(key string) (string, bool) {
	value, ok := m[key]
	return value, ok
}

// FileSource holds settings decoded from a YAML or JSONC file of flat
// key/value pairs. Keys match case-insensitively, so both PINATA_JWT and
// pinata_jwt work.
type FileSource struct {
	path   string
	values map[string]string
}

// LoadFile reads the settings file at path. Files ending in .json or .jsonc
// are parsed as JSON with comments, anything else as YAML.
func LoadFile(path string) (*FileSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Key: KeyConfigFile, Message: fmt.Sprintf("cannot read config file %s", path), Cause: err}
	}

	var document map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(raw)))
		decoder.UseNumber()
		if err := decoder.Decode(&document); err != nil {
			return nil, &ConfigurationError{Key: KeyConfigFile, Message: fmt.Sprintf("invalid JSON in %s", path), Cause: err}
		}
	default:
		if err := yaml.Unmarshal(raw, &document); err != nil {
			return nil, &ConfigurationError{Key: KeyConfigFile, Message: fmt.Sprintf("invalid YAML in %s", path), Cause: err}
		}
	}

	values := make(map[string]string, len(document))
	for key, value := range document {
		switch typed := value.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(typed))
			for _, item := range typed {
				parts = append(parts, fmt.Sprint(item))
			}
			values[strings.ToUpper(key)] = strings.Join(parts, ",")
		case map[string]any:
			return nil, &ConfigurationError{
				Key:     strings.ToUpper(key),
				Message: fmt.Sprintf("config file %s: nested value for %q is not supported", path, key),
			}
		default:
			values[strings.ToUpper(key)] = fmt.Sprint(typed)
		}
	}

	return &FileSource{path: path, values: values}, nil
}

// Path returns the file the settings were read from.
func (f *FileSource) Path() string {
	return f.path
}

func (f *FileSource) Lookup(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	value, ok := f.values[strings.ToUpper(key)]
	return value, ok
}

type layered []Source

// Layered consults sources in order and returns the first non-empty value.
func Layered(sources ...Source) Source {
	filtered := make(layered, 0, len(sources))
	for _, source := range sources {
		if source != nil {
			filtered = append(filtered, source)
		}
	}
	return filtered
}

func (l layered) Lookup(key string) (string, bool) {
	for _, source := range l {
		if value, ok := source.Lookup(key); ok && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	return "", false
}
