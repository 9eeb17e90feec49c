package config

import (
	"fmt"
	"os"

	"github.com/go-yaml/yaml"

	"github.com/teknolab/repute/internal/domain"
)

type Config struct {
	Server      Server         `yaml:"server"`
	Reputation  Reputation     `yaml:"reputation"`
	Actions     []Action       `yaml:"actions"`
	Permissions []Permission   `yaml:"permissions"`
	Dispatch    []DispatchRule `yaml:"dispatch"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

// Reputation carries the accrual limits. LossCap is stored negative; a
// positive value is read as a magnitude for compatibility with configs
// written against the old convention.
type Reputation struct {
	Base    int `yaml:"base"`
	GainCap int `yaml:"gainCap"`
	LossCap int `yaml:"lossCap"`
}

type Action struct {
	ID              string `yaml:"id"`
	Value           int    `yaml:"value"`
	UniquePerActor  bool   `yaml:"uniquePerActor"`
	UniquePerTarget bool   `yaml:"uniquePerTarget"`
	Description     string `yaml:"description"`
}

type Permission struct {
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	RequiredReputation int    `yaml:"requiredReputation"`
}

// DispatchRule binds a content type to an action kind for the default
// table-driven handler.
type DispatchRule struct {
	ContentType string `yaml:"contentType"`
	Action      string `yaml:"action"`
}

const (
	defaultListen  = ":8000"
	defaultBase    = 5000
	defaultGainCap = 250
	defaultLossCap = -250
)

func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, err
	}

	if config.Server.Listen == "" {
		config.Server.Listen = defaultListen
	}
	if config.Reputation.Base == 0 {
		config.Reputation.Base = defaultBase
	}
	if config.Reputation.GainCap == 0 {
		config.Reputation.GainCap = defaultGainCap
	}
	if config.Reputation.LossCap == 0 {
		config.Reputation.LossCap = defaultLossCap
	}
	if config.Reputation.LossCap > 0 {
		config.Reputation.LossCap = -config.Reputation.LossCap
	}
	if config.Reputation.GainCap < 0 {
		return Config{}, fmt.Errorf("gainCap must be positive, got %d", config.Reputation.GainCap)
	}

	return config, nil
}

// Caps converts the configured limits into their domain form.
func (c Config) Caps() domain.Caps {
	return domain.Caps{
		Base: c.Reputation.Base,
		Gain: c.Reputation.GainCap,
		Loss: c.Reputation.LossCap,
	}
}

// ActionKinds converts the configured catalog entries into domain kinds.
func (c Config) ActionKinds() []domain.ActionKind {
	kinds := make([]domain.ActionKind, 0, len(c.Actions))
	for _, action := range c.Actions {
		kinds = append(kinds, domain.ActionKind{
			ID:              action.ID,
			PointValue:      action.Value,
			UniquePerActor:  action.UniquePerActor,
			UniquePerTarget: action.UniquePerTarget,
			Description:     action.Description,
		})
	}
	return kinds
}

// PermissionRules converts the configured seed rules into domain form.
func (c Config) PermissionRules() []domain.PermissionRule {
	rules := make([]domain.PermissionRule, 0, len(c.Permissions))
	for _, permission := range c.Permissions {
		rules = append(rules, domain.PermissionRule{
			Name:               permission.Name,
			Description:        permission.Description,
			RequiredReputation: permission.RequiredReputation,
		})
	}
	return rules
}
