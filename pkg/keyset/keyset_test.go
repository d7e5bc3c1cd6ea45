package keyset

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadYAMLAndResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.yaml")
	content := `keys:
  - temperature
  - humidity
  - pressure
sets:
  climate:
    - temperature
    - humidity
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp keyset: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	available := []string{"humidity", "pressure", "temperature", "battery"}

	all, err := cfg.Resolve("ALL", available)
	if err != nil {
		t.Fatalf("Resolve ALL failed: %v", err)
	}
	// Порядок колонок задаёт файл, а не сервер.
	if !reflect.DeepEqual(all, []string{"temperature", "humidity", "pressure"}) {
		t.Fatalf("Resolve ALL returned %v", all)
	}

	climate, err := cfg.Resolve("climate", available)
	if err != nil {
		t.Fatalf("Resolve climate failed: %v", err)
	}
	if !reflect.DeepEqual(climate, []string{"temperature", "humidity"}) {
		t.Fatalf("Resolve climate returned %v", climate)
	}

	single, err := cfg.Resolve("battery", available)
	if err != nil {
		t.Fatalf("Resolve single key failed: %v", err)
	}
	if !reflect.DeepEqual(single, []string{"battery"}) {
		t.Fatalf("unexpected single resolve result: %v", single)
	}

	pattern, err := cfg.Resolve("*e", available)
	if err != nil {
		t.Fatalf("Resolve pattern failed: %v", err)
	}
	if !reflect.DeepEqual(pattern, []string{"pressure", "temperature"}) {
		t.Fatalf("Resolve pattern returned %v", pattern)
	}

	list, err := cfg.Resolve("battery,humidity,battery", available)
	if err != nil {
		t.Fatalf("Resolve list failed: %v", err)
	}
	if !reflect.DeepEqual(list, []string{"battery", "humidity"}) {
		t.Fatalf("Resolve list returned %v", list)
	}

	if _, err := cfg.Resolve("missing", available); err == nil {
		t.Fatal("expected error for missing key")
	}
	if _, err := cfg.Resolve("no_match_*", available); err == nil {
		t.Fatal("expected error for unmatched pattern")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")
	content := `{"sets": {"power": ["voltage", "current"]}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp keyset: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	got, err := cfg.Resolve("power", []string{"current", "voltage", "frequency"})
	if err != nil {
		t.Fatalf("Resolve power failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"voltage", "current"}) {
		t.Fatalf("Resolve power returned %v", got)
	}

	// Набор, целиком отсутствующий на устройстве, это ошибка.
	if _, err := cfg.Resolve("power", []string{"temperature"}); err == nil {
		t.Fatal("expected error when no set key is reported by the device")
	}
}

func TestLoadEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.yaml")
	if err := os.WriteFile(path, []byte("sets: {}\n"), 0o644); err != nil {
		t.Fatalf("write temp keyset: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for file without keys and sets")
	}
}

func TestResolveWithoutFile(t *testing.T) {
	var cfg *Config

	all, err := cfg.Resolve("", []string{"b", "a"})
	if err != nil {
		t.Fatalf("Resolve ALL without file failed: %v", err)
	}
	if !reflect.DeepEqual(all, []string{"a", "b"}) {
		t.Fatalf("Resolve ALL returned %v", all)
	}

	list, err := cfg.Resolve("a, b", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Resolve list without file failed: %v", err)
	}
	if !reflect.DeepEqual(list, []string{"a", "b"}) {
		t.Fatalf("Resolve list returned %v", list)
	}

	if _, err := cfg.Resolve("", nil); err == nil {
		t.Fatal("expected error when the device reports no keys")
	}
}
