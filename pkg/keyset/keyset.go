package keyset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config описывает именованные наборы ключей телеметрии.
type Config struct {
	Keys []string            `json:"keys" yaml:"keys"`
	Sets map[string][]string `json:"sets" yaml:"sets"`
}

// Load загружает описание наборов ключей из YAML или JSON.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("keyset: path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyset: %w", err)
	}

	cfg := &Config{Sets: map[string][]string{}}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("keyset: failed to decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("keyset: failed to decode JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("keyset: format %s is not supported yet", ext)
	}

	if len(cfg.Keys) == 0 && len(cfg.Sets) == 0 {
		return nil, errors.New("keyset: file defines no keys and no sets")
	}
	return cfg, nil
}

// Resolve возвращает список ключей согласно селектору, ограниченный
// фактически доступными на сервере ключами available.
// Селектор: "ALL", имя набора из Sets, имя отдельного ключа,
// шаблон (* и ?) или список через запятую.
func (c *Config) Resolve(selector string, available []string) ([]string, error) {
	if selector == "" || strings.EqualFold(selector, "ALL") {
		return c.allKeys(available)
	}

	if c != nil {
		if names, ok := c.Sets[selector]; ok {
			return intersect(names, available, selector)
		}
	}

	if strings.Contains(selector, ",") {
		var keys []string
		for _, name := range strings.Split(selector, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			resolved, err := c.resolveSingle(name, available)
			if err != nil {
				return nil, err
			}
			keys = append(keys, resolved...)
		}
		return dedup(keys), nil
	}

	return c.resolveSingle(selector, available)
}

func (c *Config) resolveSingle(selector string, available []string) ([]string, error) {
	if strings.ContainsAny(selector, "*?") {
		return keysFromPattern(selector, available)
	}

	for _, key := range available {
		if key == selector {
			return []string{key}, nil
		}
	}
	return nil, fmt.Errorf("keyset: key %q is not reported by the device", selector)
}

func (c *Config) allKeys(available []string) ([]string, error) {
	// Явный список keys в файле задаёт и состав, и порядок колонок.
	if c != nil && len(c.Keys) > 0 {
		return intersect(c.Keys, available, "keys")
	}
	if len(available) == 0 {
		return nil, errors.New("keyset: device reports no telemetry keys")
	}
	keys := append([]string(nil), available...)
	sort.Strings(keys)
	return dedup(keys), nil
}

func intersect(names, available []string, origin string) ([]string, error) {
	present := make(map[string]bool, len(available))
	for _, key := range available {
		present[key] = true
	}
	var keys []string
	for _, name := range names {
		if name == "" || !present[name] {
			continue
		}
		keys = append(keys, name)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("keyset: %q matched no keys reported by the device", origin)
	}
	return dedup(keys), nil
}

func keysFromPattern(pattern string, available []string) ([]string, error) {
	keys := append([]string(nil), available...)
	sort.Strings(keys)
	var matched []string
	for _, key := range keys {
		ok, err := filepath.Match(pattern, key)
		if err != nil {
			return nil, fmt.Errorf("keyset: invalid pattern %q: %w", pattern, err)
		}
		if ok {
			matched = append(matched, key)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("keyset: pattern %q matched nothing", pattern)
	}
	return dedup(matched), nil
}

func dedup(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	result := keys[:0]
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, key)
	}
	return result
}
