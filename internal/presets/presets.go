package presets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var defaultFiles embed.FS

// Preset names a ready-to-use provider endpoint and model.
type Preset struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	APIKeyEnv   string  `yaml:"api_key_env"`
}

type file struct {
	Providers map[string]Preset `yaml:"providers"`
}

// Catalog loads provider presets from embedded defaults and an optional
// override file. Override entries replace defaults with the same name.
type Catalog struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

// Load reads the embedded defaults and then applies overrideFile if given.
func Load(overrideFile string) (*Catalog, error) {
	c := &Catalog{presets: make(map[string]Preset)}

	raw, err := fs.ReadFile(defaultFiles, "providers.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded presets: %w", err)
	}
	if err := c.applyYAML(raw); err != nil {
		return nil, err
	}

	if strings.TrimSpace(overrideFile) != "" {
		b, err := os.ReadFile(overrideFile)
		if err != nil {
			return nil, fmt.Errorf("read presets file: %w", err)
		}
		if err := c.applyYAML(b); err != nil {
			return nil, fmt.Errorf("parse %s: %w", overrideFile, err)
		}
	}
	return c, nil
}

func (c *Catalog) applyYAML(b []byte) error {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return err
	}
	c.mu.Lock()
	for name, p := range f.Providers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		c.presets[name] = p
	}
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Get(name string) (Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.presets))
	for n := range c.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
