package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

const appDir = "librarian"

// xdgDir resolves an XDG base directory, falling back to fallback under $HOME.
func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return appDir
	}
	return filepath.Join(home, fallback, appDir)
}

func defaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// FilePath returns the location of the config file.
func FilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.json")
}

// fileBackend keeps keys as a flat JSON object. An unreadable or malformed
// file is logged and treated as empty.
type fileBackend struct {
	path string
	data map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]any)}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		slog.Warn("could not read config file, using defaults", "path", path, "error", err)
	default:
		if err := json.Unmarshal(raw, &b.data); err != nil || b.data == nil {
			slog.Warn("could not parse config file, using defaults", "path", path, "error", err)
			b.data = make(map[string]any)
		}
	}
	return b
}

// save writes through a temp file so a crash never leaves a truncated config.
func (b *fileBackend) save() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	raw, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting config permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp.Name(), b.path)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, isString := v.(string); isString {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		if val < math.MinInt || val > math.MaxInt || val != math.Trunc(val) {
			return 0, true, fmt.Errorf("value %v for %s is not a valid integer", val, key)
		}
		return int(val), true, nil
	case int:
		return val, true, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("invalid type %T for %s", v, key)
	}
}

// GetBool accepts JSON booleans and the strings understood by strconv.ParseBool.
func (b *fileBackend) GetBool(key string) (bool, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return false, false, nil
	}
	switch val := v.(type) {
	case bool:
		return val, true, nil
	case string:
		bv, err := strconv.ParseBool(val)
		if err != nil {
			return false, true, fmt.Errorf("invalid bool for %s: %w", key, err)
		}
		return bv, true, nil
	default:
		return false, true, fmt.Errorf("invalid type %T for %s", v, key)
	}
}

func (b *fileBackend) set(key string, val any) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetString(key, val string) error   { return b.set(key, val) }
func (b *fileBackend) SetInt(key string, val int) error   { return b.set(key, val) }
func (b *fileBackend) SetBool(key string, val bool) error { return b.set(key, val) }

func (b *fileBackend) Delete(key string) error {
	delete(b.data, key)
	return b.save()
}
