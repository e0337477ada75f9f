package config

import (
	"fmt"
	"sort"
	"strconv"
)

// KeyInfo is one displayable config key.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists non-secret keys with their effective values, sorted by key.
func ShowAll(cfg Config) []KeyInfo {
	var out []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		out = append(out, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.extract(cfg))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SetKey persists a value in the config file.
func SetKey(key, value string) error {
	return setKey(newFileBackend(FilePath()), key, value)
}

// UnsetKey removes a key from the config file so its default applies again.
func UnsetKey(key string) error {
	return unsetKey(newFileBackend(FilePath()), key)
}

// ValidKeys returns the non-secret key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	sort.Strings(keys)
	return keys
}

// writableSpec resolves key to a spec that may be stored in the file.
func writableSpec(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return keySpec{}, fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
		}
		return s, nil
	}
	return keySpec{}, fmt.Errorf("unknown config key: %q", key)
}

func setKey(b ConfigBackend, key, value string) error {
	s, err := writableSpec(key)
	if err != nil {
		return err
	}
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		return b.SetInt(key, i)
	case kBool:
		bv, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value for %s: %w", key, err)
		}
		return b.SetBool(key, bv)
	default:
		return b.SetString(key, value)
	}
}

func unsetKey(b ConfigBackend, key string) error {
	if _, err := writableSpec(key); err != nil {
		return err
	}
	return b.Delete(key)
}
