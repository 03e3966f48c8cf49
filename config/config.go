// Package config carrega a configuração do registro a partir de um arquivo
// YAML opcional e de variáveis de ambiente IMOVELNFT_*.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ferreirogomes/imovelnft/models"
)

const EnvPrefix = "IMOVELNFT"

// Backends de armazenamento aceitos em store.backend.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Modos de autorização aceitos em auth.mode.
const (
	AuthSignature = "signature"
	AuthNone      = "none"
)

// Config é a configuração completa do servidor e do cliente.
type Config struct {
	ListenAddr string           `mapstructure:"listen_addr"`
	LogLevel   string           `mapstructure:"log_level"`
	Store      StoreConfig      `mapstructure:"store"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Collection CollectionConfig `mapstructure:"collection"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Client     ClientConfig     `mapstructure:"client"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`  // postgres e sqlite
	Path    string `mapstructure:"path"` // badger; vazio significa em memória
}

type RegistryConfig struct {
	// Admin é gravado no primeiro serve quando o registro ainda não foi inicializado.
	Admin string `mapstructure:"admin"`
}

type CollectionConfig struct {
	Name   string `mapstructure:"name"`
	Symbol string `mapstructure:"symbol"`
	URI    string `mapstructure:"uri"`
}

type AuthConfig struct {
	Mode string `mapstructure:"mode"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type ClientConfig struct {
	Server  string `mapstructure:"server"`
	Keypair string `mapstructure:"keypair"`
}

func setDefaults(v *viper.Viper) {
	def := models.DefaultCollection()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.path", "")
	v.SetDefault("registry.admin", "")
	v.SetDefault("collection.name", def.Name)
	v.SetDefault("collection.symbol", def.Symbol)
	v.SetDefault("collection.uri", def.BaseURI)
	v.SetDefault("auth.mode", AuthSignature)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("client.server", "http://localhost:8080")
	v.SetDefault("client.keypair", "")
}

// Load lê o arquivo em path (se informado) e aplica as variáveis de ambiente
// por cima. IMOVELNFT_STORE_BACKEND sobrescreve store.backend, por exemplo.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("falha ao ler configuração %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("configuração inválida: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate confere os valores que não dá para corrigir com um padrão.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendMemory, BackendBadger:
	case BackendPostgres, BackendSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn é obrigatório para o backend %s", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend desconhecido: %q", c.Store.Backend))
	}

	switch c.Auth.Mode {
	case AuthSignature, AuthNone:
	default:
		errs = append(errs, fmt.Errorf("auth.mode desconhecido: %q", c.Auth.Mode))
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl deve ser positivo"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CollectionMetadata converte a seção collection nos metadados do ledger.
func (c *Config) CollectionMetadata() models.Collection {
	return models.Collection{
		Name:    c.Collection.Name,
		Symbol:  c.Collection.Symbol,
		BaseURI: c.Collection.URI,
	}
}

// ParseLevel converte log_level em um slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level inválido: %q", s)
	}
	return level, nil
}
