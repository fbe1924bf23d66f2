// Package config loads the armdap settings file and merges it with command
// line flags and OTADI_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

const (
	AdapterCMSISDAP  = "cmsisdap"
	AdapterSimulator = "simulator"

	// EnvPrefix is prepended to upper-cased flag names, OTADI_SPEED for --speed.
	EnvPrefix = "OTADI_"

	fileName = "config.yaml"
)

// Config stores persistent armdap settings
type Config struct {
	Adapter       string `yaml:"adapter"`
	VID           uint16 `yaml:"vid"`
	PID           uint16 `yaml:"pid"`
	Serial        string `yaml:"serial,omitempty"`
	SpeedHz       uint32 `yaml:"speed"`
	OverrunDetect bool   `yaml:"overrun_detect"`
	// Target is a simulator description file; empty uses the built-in one.
	Target string `yaml:"target,omitempty"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Adapter: AdapterCMSISDAP,
		VID:     0x2E8A,
		PID:     0x000C,
		SpeedHz: 1_000_000,
	}
}

// Validate checks the adapter kind and clock.
func (c *Config) Validate() error {
	switch c.Adapter {
	case AdapterCMSISDAP, AdapterSimulator:
	default:
		return errors.NotValidf("adapter %q", c.Adapter)
	}
	if c.SpeedHz == 0 {
		return errors.NotValidf("speed 0 Hz")
	}
	return nil
}

// Path returns the path to the config file
func Path() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "opentraceadi", fileName), nil
	}
	// Windows: use %APPDATA%\OpenTraceADI
	if dir := os.Getenv("APPDATA"); dir != "" {
		return filepath.Join(dir, "OpenTraceADI", fileName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Trace(err)
	}
	return filepath.Join(homeDir, ".config", "opentraceadi", fileName), nil
}

// Load reads the config file from Path.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), err
	}
	return LoadFile(path)
}

// LoadFile reads path. A missing file yields the defaults; fields absent from
// the file keep their default values.
func LoadFile(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, errors.Annotatef(err, "reading %s", path)
	}

	if err := yaml.UnmarshalStrict(data, config); err != nil {
		return nil, errors.Annotatef(err, "parsing %s", path)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Annotatef(err, "in %s", path)
	}
	return config, nil
}

// SaveFile writes the configuration to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.WriteFile(path, data, 0644))
}

// flagValues maps flag names to the string form of the configured values.
func (c *Config) flagValues() map[string]string {
	values := map[string]string{
		"adapter":        c.Adapter,
		"vid":            fmt.Sprintf("0x%04x", c.VID),
		"pid":            fmt.Sprintf("0x%04x", c.PID),
		"speed":          strconv.FormatUint(uint64(c.SpeedHz), 10),
		"overrun-detect": strconv.FormatBool(c.OverrunDetect),
	}
	if c.Serial != "" {
		values["serial"] = c.Serial
	}
	if c.Target != "" {
		values["target"] = c.Target
	}
	return values
}

// unsetFlags returns the flags of fs not given on the command line.
func unsetFlags(fs *pflag.FlagSet) map[string]*pflag.Flag {
	// pflag cannot tell a flag set to its default from one never set, so
	// collect all flags and drop the visited ones.
	nonset := make(map[string]*pflag.Flag)
	fs.VisitAll(func(f *pflag.Flag) {
		nonset[f.Name] = f
	})
	fs.Visit(func(f *pflag.Flag) {
		delete(nonset, f.Name)
	})
	return nonset
}

// EnvName returns the environment variable consulted for a flag.
func EnvName(flagName, envPrefix string) string {
	flagName = strings.ToUpper(flagName)
	flagName = strings.Replace(flagName, "-", "_", -1)
	return envPrefix + flagName
}

// ParseEnv sets every flag not given on the command line from its
// environment variable, when that is non-empty. Call it after fs.Parse.
func ParseEnv(fs *pflag.FlagSet, envPrefix string) error {
	for name, f := range unsetFlags(fs) {
		value := os.Getenv(EnvName(name, envPrefix))
		if value == "" {
			continue
		}
		if err := fs.Set(name, value); err != nil {
			return errors.Annotatef(err, "%s", EnvName(name, envPrefix))
		}
		logger.Debugf("flag --%s=%s from environment", f.Name, value)
	}
	return nil
}

// BackFill resolves flags in order: command line, environment, config file,
// flag default. Flags the config file has no value for keep their default.
func (c *Config) BackFill(fs *pflag.FlagSet, envPrefix string) error {
	if err := ParseEnv(fs, envPrefix); err != nil {
		return err
	}
	values := c.flagValues()
	for name := range unsetFlags(fs) {
		value, ok := values[name]
		if !ok {
			continue
		}
		if err := fs.Set(name, value); err != nil {
			return errors.Annotatef(err, "config value for %s", name)
		}
	}
	return nil
}
