package lint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/patlint/internal/match"
	"github.com/gnolang/patlint/internal/rule"
	"github.com/gnolang/patlint/internal/types"
)

// DefaultConfigFile is the project configuration read when no other file
// is named.
const DefaultConfigFile = ".patlint.yaml"

// severityOff disables a rule in an override.
const severityOff = "OFF"

// Config represents the project configuration file.
type Config struct {
	Name string `yaml:"name"`
	// Rules lists rule files or directories of rule files. Relative
	// entries are resolved against the directory of the configuration file.
	Rules       []string            `yaml:"rules"`
	Overrides   map[string]Override `yaml:"overrides,omitempty"`
	StepBudget  int                 `yaml:"step-budget,omitempty"`
	Mode        string              `yaml:"mode,omitempty"`
	Workers     int                 `yaml:"workers,omitempty"`
	IgnorePaths []string            `yaml:"ignore-paths,omitempty"`
}

// Override replaces the severity of one rule. Severity OFF disables it.
type Override struct {
	Severity string `yaml:"severity"`
}

func DefaultConfig() Config {
	return Config{
		Name:       "patlint",
		Rules:      []string{"rules"},
		StepBudget: match.DefaultStepBudget,
		Mode:       match.FirstMatch.String(),
	}
}

// LoadConfig reads a configuration file. Fields the file leaves out keep
// their defaults.
func LoadConfig(configurationPath string) (Config, error) {
	config := DefaultConfig()

	f, err := os.Open(configurationPath)
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("%s: %w", configurationPath, err)
	}

	base := filepath.Dir(configurationPath)
	for i, p := range config.Rules {
		if !filepath.IsAbs(p) {
			config.Rules[i] = filepath.Join(base, p)
		}
	}
	return config, nil
}

// WriteConfig stores config as YAML at configurationPath.
func WriteConfig(configurationPath string, config Config) error {
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(configurationPath, d, 0o644)
}

// MatchOptions converts the matcher settings of the configuration.
func (c Config) MatchOptions() (match.Options, error) {
	mode, ok := match.ParseMode(c.Mode)
	if !ok {
		return match.Options{}, fmt.Errorf("unknown match mode %q (want first or all)", c.Mode)
	}
	return match.Options{StepBudget: c.StepBudget, Mode: mode}, nil
}

// ApplyOverrides returns rules with the configured severities applied and
// disabled rules removed. The input rules are not modified. Overrides that
// name no loaded rule or carry an unknown severity are reported as
// configuration errors.
func ApplyOverrides(rules []*rule.Rule, overrides map[string]Override) ([]*rule.Rule, []error) {
	if len(overrides) == 0 {
		return rules, nil
	}

	var errs []error
	known := make(map[string]bool, len(rules))
	out := make([]*rule.Rule, 0, len(rules))
	for _, r := range rules {
		known[r.ID] = true
		o, ok := overrides[r.ID]
		if !ok {
			out = append(out, r)
			continue
		}
		if strings.EqualFold(o.Severity, severityOff) {
			continue
		}
		sev, err := types.ParseSeverity(o.Severity)
		if err != nil {
			errs = append(errs, &rule.ConfigurationError{Rule: r.ID, Msg: "override: " + err.Error()})
			out = append(out, r)
			continue
		}
		cp := *r
		cp.Severity = sev
		out = append(out, &cp)
	}

	for _, id := range sortedKeys(overrides) {
		if !known[id] {
			errs = append(errs, &rule.ConfigurationError{Rule: id, Msg: "override names an unknown rule"})
		}
	}
	return out, errs
}

func sortedKeys(m map[string]Override) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
