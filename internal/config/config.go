// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/confaudit/confaudit/internal/issue"
	"github.com/confaudit/confaudit/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "confaudit"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFile is looked up in the working directory.
	LocalConfigFile = AppName + "." + ConfigFileExt
	// EnvPrefix prefixes environment overrides (CONFAUDIT_FAIL_ON, CONFAUDIT_UI_VERBOSE).
	EnvPrefix = "CONFAUDIT"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the confaudit configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions layers defaults, the first config file found and the
// environment, then validates the result.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("fail_on", defaults.FailOn)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("best_effort", defaults.BestEffort)
	v.SetDefault("catalogs", defaults.Catalogs)
	v.SetDefault("default_catalog", defaults.DefaultCatalog)
	v.SetDefault("knowledge_base", defaults.KnowledgeBase)
	v.SetDefault("classify", defaults.Classify)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		// An explicit --config file is used exclusively.
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'confaudit config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		for _, candidate := range candidatePaths(opts) {
			if fileExists(candidate) {
				resolvedPath = candidate
				break
			}
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides bypass the CUE schema, so validate again in Go.
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check CONFAUDIT_* environment variables for typos").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// candidatePaths lists the implicit config locations in lookup order.
func candidatePaths(opts LoadOptions) []string {
	var paths []string
	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		if dir, err := ConfigDir(); err == nil {
			cfgDir = dir
		}
	}
	if cfgDir != "" {
		paths = append(paths, filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt))
	}
	return append(paths, filepath.Join(opts.WorkDir, LocalConfigFile))
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Note: This uses manual CUE parsing instead of cueutil.ParseAndDecode because
// the config decodes to map[string]any for Viper and all fields are optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	// Merging keeps defaults for absent keys and leaves env overrides on top.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// confaudit configuration\n\n")

	fmt.Fprintf(&sb, "workers:         %d\n", cfg.Workers)
	fmt.Fprintf(&sb, "timeout:         %q\n", cfg.Timeout.String())
	fmt.Fprintf(&sb, "fail_on:         %q\n", cfg.FailOn)
	fmt.Fprintf(&sb, "output:          %q\n", cfg.Output)
	fmt.Fprintf(&sb, "best_effort:     %v\n", cfg.BestEffort)
	fmt.Fprintf(&sb, "default_catalog: %v\n", cfg.DefaultCatalog)
	fmt.Fprintf(&sb, "knowledge_base:  %q\n", cfg.KnowledgeBase)

	if len(cfg.Catalogs) > 0 {
		sb.WriteString("\ncatalogs: [\n")
		for _, c := range cfg.Catalogs {
			fmt.Fprintf(&sb, "\t%q,\n", c)
		}
		sb.WriteString("]\n")
	}

	if len(cfg.Classify) > 0 {
		sb.WriteString("\nclassify: [\n")
		for _, e := range cfg.Classify {
			fmt.Fprintf(&sb, "\t{pattern: %q, format: %q},\n", e.Pattern, e.Format)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n")

	return sb.String()
}
