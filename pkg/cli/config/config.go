package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// File is a TOML configuration file. Top-level keys are flag names, e.g.
//
//	rpm = 1000
//	workers = 4
//	output = "gs://minutes/summaries"
//
// Values from the file apply only to flags that were set neither on the command line
// nor by environment variable.
type File struct {
	path   string
	values map[string]string
}

// ConfigFlag returns the --config flag bound to path
func ConfigFlag(path *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "TOML file with default flag values",
		Sources:     cli.EnvVars("DB4DD_CONFIG"),
		Destination: path,
	}
}

// LoadFile reads and parses a configuration file
func LoadFile(path string) (*File, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}
	return ParseFile(path, data)
}

// ParseFile parses configuration data. Nested tables and arrays are rejected.
func ParseFile(path string, data []byte) (*File, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	values := make(map[string]string, len(raw))
	for key, v := range raw {
		s, err := scalar(v)
		if err != nil {
			return nil, goerr.Wrap(err, "unsupported config value",
				goerr.V(ConfigPathKey, path),
				goerr.V(ConfigKeyKey, key))
		}
		values[key] = s
	}

	return &File{path: path, values: values}, nil
}

func scalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case toml.LocalDate, toml.LocalTime, toml.LocalDateTime, time.Time:
		return fmt.Sprint(x), nil
	default:
		return "", goerr.Wrap(ErrInvalidConfig, "value must be a string, number or boolean", goerr.V("type", fmt.Sprintf("%T", v)))
	}
}

// Keys returns the keys defined in the file in sorted order
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the raw value of key
func (f *File) Value(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Apply sets unset flags of c from the file. Every key must name a flag of some command
// in the application; keys of flags that c does not accept are left for other commands.
func (f *File) Apply(c *cli.Command) error {
	known := flagNames(c.Root())
	accepted := make(map[string]struct{})
	for _, cmd := range c.Lineage() {
		for _, fl := range cmd.Flags {
			for _, name := range fl.Names() {
				accepted[name] = struct{}{}
			}
		}
	}

	for _, key := range f.Keys() {
		if _, ok := known[key]; !ok {
			return goerr.Wrap(ErrUnknownConfigKey, "config file names an unknown flag",
				goerr.V(ConfigPathKey, f.path),
				goerr.V(ConfigKeyKey, key))
		}
		if _, ok := accepted[key]; !ok || c.IsSet(key) {
			continue
		}
		if err := c.Set(key, f.values[key]); err != nil {
			return goerr.Wrap(err, "failed to apply config value",
				goerr.V(ConfigPathKey, f.path),
				goerr.V(ConfigKeyKey, key))
		}
	}
	return nil
}

func flagNames(root *cli.Command) map[string]struct{} {
	names := make(map[string]struct{})
	var walk func(cmd *cli.Command)
	walk = func(cmd *cli.Command) {
		for _, fl := range cmd.Flags {
			for _, name := range fl.Names() {
				names[name] = struct{}{}
			}
		}
		for _, sub := range cmd.Commands {
			walk(sub)
		}
	}
	walk(root)
	return names
}
