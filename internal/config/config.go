// Package config holds process configuration: the tree vocabulary, logging,
// the selector cache and fault strictness. Defaults come from Default; a TOML
// file may override any subset of them.
package config

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/FocuswithJustin/Hookline/core/cache"
	"github.com/FocuswithJustin/Hookline/core/dom"
	"github.com/FocuswithJustin/Hookline/core/errors"
	"github.com/FocuswithJustin/Hookline/internal/logging"
)

// Config is the full configuration.
type Config struct {
	Tree    TreeConfig             `toml:"tree"`
	Aliases map[string]AliasConfig `toml:"aliases"`
	Log     LogConfig              `toml:"log"`
	Cache   CacheConfig            `toml:"cache"`
	// Strict makes internal faults panic.
	Strict bool `toml:"strict"`
}

// TreeConfig names the reserved elements and attributes.
type TreeConfig struct {
	Root       string `toml:"root"`
	Hook       string `toml:"hook"`
	NameAttr   string `toml:"name_attr"`
	Marker     string `toml:"marker"`
	Wrapper    string `toml:"wrapper"`
	Transition string `toml:"transition"`
	Error      string `toml:"error"`
}

// AliasConfig maps a chrome name to elements.
type AliasConfig struct {
	Tags    []string `toml:"tags"`
	Classes []string `toml:"classes"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// CacheConfig configures the selector expression cache.
type CacheConfig struct {
	Size int    `toml:"size"`
	TTL  string `toml:"ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	v := dom.DefaultVocabulary()
	aliases := make(map[string]AliasConfig, len(v.Aliases))
	for name, a := range v.Aliases {
		aliases[name] = AliasConfig{
			Tags:    append([]string(nil), a.Tags...),
			Classes: append([]string(nil), a.Classes...),
		}
	}
	return Config{
		Tree: TreeConfig{
			Root:       v.RootTag,
			Hook:       v.HookTag,
			NameAttr:   v.NameAttr,
			Marker:     v.MarkerTag,
			Wrapper:    v.WrapperTag,
			Transition: v.TransitionTag,
			Error:      v.ErrorTag,
		},
		Aliases: aliases,
		Log:     LogConfig{Level: "info", Format: "text"},
		Cache:   CacheConfig{Size: cache.DefaultConfig().MaxSize},
		Strict:  true,
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default values; aliases named in the file are added or replaced.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, &errors.ParseError{Format: "config", Path: path, Message: err.Error(), Err: err}
	}
	for _, key := range meta.Undecoded() {
		logging.Warn("unknown config key", "path", path, "key", key.String())
	}

	canon := make(map[string]AliasConfig, len(cfg.Aliases))
	for name, a := range cfg.Aliases {
		canon[dom.Canonical(name)] = a
	}
	cfg.Aliases = canon

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	tags := []struct{ field, value string }{
		{"tree.root", c.Tree.Root},
		{"tree.hook", c.Tree.Hook},
		{"tree.name_attr", c.Tree.NameAttr},
		{"tree.marker", c.Tree.Marker},
		{"tree.wrapper", c.Tree.Wrapper},
		{"tree.transition", c.Tree.Transition},
		{"tree.error", c.Tree.Error},
	}
	for _, t := range tags {
		if strings.TrimSpace(t.value) == "" {
			return errors.NewValidation(t.field, "must not be empty")
		}
	}
	if c.Tree.Marker == c.Tree.Hook || c.Tree.Wrapper == c.Tree.Hook || c.Tree.Marker == c.Tree.Wrapper {
		return errors.NewValidation("tree", "hook, marker and wrapper tags must differ")
	}
	for _, name := range slices.Sorted(maps.Keys(c.Aliases)) {
		if a := c.Aliases[name]; len(a.Tags) == 0 && len(a.Classes) == 0 {
			return errors.NewValidation("aliases."+name, "needs at least one tag or class")
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.NewValidation("log.level", "unknown level "+c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return errors.NewValidation("log.format", "unknown format "+c.Log.Format)
	}
	if c.Cache.Size < 0 {
		return errors.NewValidation("cache.size", "must not be negative")
	}
	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return errors.NewValidation("cache.ttl", err.Error())
		}
	}
	return nil
}

// Vocabulary returns the tree vocabulary.
func (c Config) Vocabulary() dom.Vocabulary {
	aliases := make(map[string]dom.Alias, len(c.Aliases))
	for name, a := range c.Aliases {
		aliases[dom.Canonical(name)] = dom.Alias{Tags: a.Tags, Classes: a.Classes}
	}
	return dom.Vocabulary{
		RootTag:       c.Tree.Root,
		HookTag:       c.Tree.Hook,
		NameAttr:      c.Tree.NameAttr,
		MarkerTag:     c.Tree.Marker,
		WrapperTag:    c.Tree.Wrapper,
		TransitionTag: c.Tree.Transition,
		ErrorTag:      c.Tree.Error,
		Aliases:       aliases,
	}
}

// CacheConfig returns the selector cache settings.
func (c Config) CacheConfig() cache.Config {
	cc := cache.DefaultConfig()
	cc.MaxSize = c.Cache.Size
	if d, err := time.ParseDuration(c.Cache.TTL); err == nil {
		cc.TTL = d
	}
	return cc
}

// Apply installs the process-wide settings: the logger and fault mode.
func (c Config) Apply() {
	logging.InitLogger(logging.ParseLevel(c.Log.Level), logging.ParseFormat(c.Log.Format))
	errors.Strict = c.Strict
}
