package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config armazena as configurações do HexTerrain.
type Config struct {
	// Servidor de edição
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// Cliente
	ServerURL string `json:"server_url" yaml:"server_url"`

	// Mundo
	WorldName string  `json:"world_name" yaml:"world_name"`
	SavesDir  string  `json:"saves_dir" yaml:"saves_dir"`
	MapWidth  int32   `json:"map_width" yaml:"map_width"`
	MapHeight int32   `json:"map_height" yaml:"map_height"`
	HexWidth  float32 `json:"hex_width" yaml:"hex_width"`

	// Maior |amount| aceito num EditRequest
	MaxEditAmount int `json:"max_edit_amount" yaml:"max_edit_amount"`

	// Intervalo de salvamento automático em segundos (0 desativa)
	AutosaveSeconds int `json:"autosave_seconds" yaml:"autosave_seconds"`

	// Meshing
	MesherThreads int `json:"mesher_threads" yaml:"mesher_threads"`

	// Debug
	ShowDebugInfo bool `json:"show_debug_info" yaml:"show_debug_info"`
}

// DefaultConfig retorna a configuração padrão.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8080",
		ServerURL:  "ws://127.0.0.1:8080/ws",

		WorldName: "mundo",
		SavesDir:  "saves",
		MapWidth:  15,
		MapHeight: 10,
		HexWidth:  0.5,

		MaxEditAmount: 8,

		AutosaveSeconds: 30,
		MesherThreads:   4,

		ShowDebugInfo: true,
	}
}

// AutosaveInterval retorna o intervalo de salvamento como time.Duration.
func (c *Config) AutosaveInterval() time.Duration {
	return time.Duration(c.AutosaveSeconds) * time.Second
}

// Validate verifica se os valores são utilizáveis.
func (c *Config) Validate() error {
	var errs []error
	if c.MapWidth <= 0 || c.MapHeight <= 0 {
		errs = append(errs, fmt.Errorf("dimensões do mapa devem ser positivas (%dx%d)", c.MapWidth, c.MapHeight))
	}
	if !(c.HexWidth > 0) {
		errs = append(errs, fmt.Errorf("hex_width deve ser positivo (%v)", c.HexWidth))
	}
	if c.WorldName == "" {
		errs = append(errs, errors.New("world_name deve ser definido"))
	}
	if c.MaxEditAmount <= 0 {
		errs = append(errs, errors.New("max_edit_amount deve ser positivo"))
	}
	if c.AutosaveSeconds < 0 {
		errs = append(errs, errors.New("autosave_seconds não pode ser negativo"))
	}
	if c.MesherThreads <= 0 {
		errs = append(errs, errors.New("mesher_threads deve ser positivo"))
	}
	return errors.Join(errs...)
}

// configPath retorna o caminho do arquivo de configuração.
func configPath() string {
	execDir, err := os.Executable()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(filepath.Dir(execDir), "config.json")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load carrega as configurações do config.json ao lado do executável.
// Se o arquivo não existir ou for inválido, retorna as configurações padrão.
func Load() *Config {
	cfg, err := LoadFrom(configPath())
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// LoadFrom carrega as configurações de um arquivo JSON ou YAML (pela extensão).
// Campos ausentes mantêm os valores padrão.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save salva as configurações em config.json ao lado do executável.
func (c *Config) Save() error {
	return c.SaveTo(configPath())
}

// SaveTo salva as configurações no caminho informado (JSON ou YAML pela extensão).
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
