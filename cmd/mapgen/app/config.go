package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultBinStep = 0.0001 // degrees, roughly 11 m of latitude

// Config is the map generator configuration. Defaults come from the
// shared survey configuration file's map section when one is given;
// explicit CLI flags always win. Records come from either a survey CSV
// or a database session, never both.
type Config struct {
	CSVPath    string
	DBPath     string
	SessionID  int64
	OutputFile string
	BinStep    float64
	NoDedupe   bool
	AutoOpen   bool
}

// mapFileConfig is the map section of the survey configuration file.
// The rest of the file belongs to the collector and is ignored here.
type mapFileConfig struct {
	Map struct {
		Deduplicate *bool   `yaml:"deduplicate"`
		BinStep     float64 `yaml:"binStep"`
		AutoOpen    *bool   `yaml:"autoOpen"`
		Output      string  `yaml:"output"`
	} `yaml:"map"`
}

func NewConfig() *Config {
	return &Config{
		BinStep: defaultBinStep,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var configPath string
	flag.StringVar(&configPath, "c", "", "Path to the survey configuration file, seeds defaults from its map section")
	flag.StringVar(&c.CSVPath, "i", "", "Path to the survey CSV file")
	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID, used with -db")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.Float64Var(&c.BinStep, "bin", defaultBinStep, "Spatial bin step in degrees for deduplication")
	flag.BoolVar(&c.NoDedupe, "no-dedupe", false, "Render every record instead of one per spatial bin")
	flag.BoolVar(&c.AutoOpen, "open", false, "Open the rendered map with the system image viewer")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		explicit[f.Name] = true
	})

	if configPath != "" {
		if err := c.applyMapDefaults(configPath, explicit); err != nil {
			return nil, err
		}
	}

	var err error
	switch {
	case c.CSVPath == "" && c.DBPath == "":
		err = errors.New("an input is required: either -i or -db")
	case c.CSVPath != "" && c.DBPath != "":
		err = errors.New("-i and -db are mutually exclusive")
	case c.DBPath != "" && c.SessionID <= 0:
		err = errors.New("session id is required")
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case !c.NoDedupe && c.BinStep <= 0:
		err = fmt.Errorf("bin step must be positive: %f", c.BinStep)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	if !strings.HasSuffix(strings.ToLower(c.OutputFile), ".png") {
		c.OutputFile += ".png"
	}
	return c, nil
}

// applyMapDefaults seeds the configuration from the map section of the
// survey configuration file. A value is only taken for settings whose
// flag was not set explicitly on the command line.
func (c *Config) applyMapDefaults(path string, explicit map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	var file mapFileConfig
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing configuration: %w", err)
	}

	if !explicit["bin"] && file.Map.BinStep != 0 {
		c.BinStep = file.Map.BinStep
	}
	if !explicit["no-dedupe"] && file.Map.Deduplicate != nil {
		c.NoDedupe = !*file.Map.Deduplicate
	}
	if !explicit["open"] && file.Map.AutoOpen != nil {
		c.AutoOpen = *file.Map.AutoOpen
	}
	if !explicit["o"] && file.Map.Output != "" {
		c.OutputFile = file.Map.Output
	}

	return nil
}
