package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("configuração padrão inválida: %v", err)
	}
}

func TestValidateDetectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"largura do mapa", func(c *Config) { c.MapWidth = 0 }, "dimensões do mapa"},
		{"largura do hex", func(c *Config) { c.HexWidth = -1 }, "hex_width"},
		{"nome do mundo", func(c *Config) { c.WorldName = "" }, "world_name"},
		{"autosave", func(c *Config) { c.AutosaveSeconds = -5 }, "autosave_seconds"},
		{"threads", func(c *Config) { c.MesherThreads = 0 }, "mesher_threads"},
		{"limite de edição", func(c *Config) { c.MaxEditAmount = 0 }, "max_edit_amount"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: Validate() = %v, want erro contendo %q", tt.name, err, tt.wantErr)
		}
	}
}

func TestLoadFromFormats(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		file    string
		content string
	}{
		{"config.json", `{"world_name": "ilha", "map_width": 8, "hex_width": 1.5}`},
		{"config.yaml", "world_name: ilha\nmap_width: 8\nhex_width: 1.5\n"},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, tt.file)
		if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("LoadFrom(%s): %v", tt.file, err)
		}
		if cfg.WorldName != "ilha" || cfg.MapWidth != 8 || cfg.HexWidth != 1.5 {
			t.Errorf("LoadFrom(%s) = %+v", tt.file, cfg)
		}
		if cfg.MapHeight != DefaultConfig().MapHeight {
			t.Errorf("LoadFrom(%s): campo ausente MapHeight = %d, want padrão", tt.file, cfg.MapHeight)
		}
	}
}

func TestLoadFromRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"hex_width": 0}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom com hex_width 0: esperado erro")
	}
	if _, err := LoadFrom(filepath.Join(dir, "nao_existe.json")); err == nil {
		t.Error("LoadFrom de arquivo inexistente: esperado erro")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.WorldName = "arquipelago"
	cfg.MapWidth = 32
	for _, name := range []string{"out.json", "out.yml"} {
		path := filepath.Join(dir, name)
		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("SaveTo(%s): %v", name, err)
		}
		got, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("LoadFrom(%s): %v", name, err)
		}
		if !reflect.DeepEqual(got, cfg) {
			t.Errorf("%s: %+v, want %+v", name, got, cfg)
		}
	}
}
