package config

import (
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config describes all configuration options
type Config struct {
	TaskFile  string `default:"tasks.star" usage:"Name of the task file searched in the current directory and its parents"`
	CacheFile string `default:".buildsys.cache" usage:"Parsed task cache, relative to the task file"`
	NoCache   bool   `default:"false" usage:"Always parse the task file"`
	Debug     bool   `default:"false" usage:"Print error stacks and every log field"`
	Log       struct {
		Level   string `default:"info"`
		JSON    bool   `default:"false" usage:"Output JSONND instead of pretty console messages"`
		NoColor bool   `default:"false" usage:"Disable colored console output"`
	}
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object.
// Values are read from buildsys.toml and BUILDSYS_* environment variables; command line
// flags belong to cobra.
func Loader(files ...string) (*Config, *aconfig.Loader) {
	if len(files) == 0 {
		files = []string{"buildsys.toml"}
	}

	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:        "BUILDSYS",
		SkipFlags:        true,
		AllowUnknownEnvs: true,
		Files:            existing,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the configuration and validates it
func Load(files ...string) (*Config, error) {
	cfg, loader := Loader(files...)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if _, ok := logLevels[cfg.Log.Level]; !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.TaskFile == "" {
		return eris.New(`taskfile must not be empty`)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	if cfg.Debug {
		return zerolog.DebugLevel
	}
	return logLevels[cfg.Log.Level]
}
