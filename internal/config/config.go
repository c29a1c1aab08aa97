package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	EnvConfigPath     = "TRADEWATCH_CONFIG"
	DefaultConfigPath = "configs/config.yaml"
)

// ResolvePath returns the config path from the environment, or the default.
func ResolvePath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads path and every file it includes (depth first, includes before the
// including file), applies defaults for keys that were not set and validates.
func Load(path string) (*Config, error) {
	files, err := newIncludeWalker().walk(path)
	if err != nil {
		return nil, err
	}
	merged := viper.New()
	merged.SetConfigType("yaml")
	for _, file := range files {
		part, err := readLayer(file)
		if err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
		if err := merged.MergeConfigMap(part.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging config file failed (%s): %w", file, err)
		}
	}

	var cfg Config
	if err := merged.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	explicit := make(keySet)
	for _, key := range merged.AllKeys() {
		explicit.mark(key)
	}
	cfg.applyDefaults(explicit)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readLayer(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

// includeWalker orders a config file after everything it includes. visiting
// holds the files on the current include chain and is how cycles are caught.
type includeWalker struct {
	done     map[string]bool
	visiting map[string]bool
	order    []string
}

func newIncludeWalker() *includeWalker {
	return &includeWalker{done: map[string]bool{}, visiting: map[string]bool{}}
}

func (w *includeWalker) walk(root string) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := w.visit(abs); err != nil {
		return nil, err
	}
	return w.order, nil
}

func (w *includeWalker) visit(path string) error {
	path = filepath.Clean(path)
	switch {
	case w.visiting[path]:
		return fmt.Errorf("include cycle detected: %s", path)
	case w.done[path]:
		return nil
	}
	w.visiting[path] = true
	defer delete(w.visiting, path)

	layer, err := readLayer(path)
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	for _, inc := range layer.GetStringSlice("include") {
		inc = strings.TrimSpace(inc)
		if inc == "" {
			continue
		}
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := w.visit(inc); err != nil {
			return err
		}
	}
	w.done[path] = true
	w.order = append(w.order, path)
	return nil
}
