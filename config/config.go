package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const dateLayout = time.DateOnly

// Config is one tax calculation: where the trades come from, the period,
// the rate and how pairs map to assets.
type Config struct {
	Portfolio      string
	Input          string
	Start          time.Time
	End            time.Time
	TaxRate        decimal.Decimal
	BasePrefixes   []string
	QuoteSuffixes  []string
	OpeningHistory bool
	WALDir         string
}

// ConfigTmp is the YAML representation of Config.
type ConfigTmp struct {
	Portfolio      string   `yaml:"portfolio"`
	Input          string   `yaml:"input"`
	Start          string   `yaml:"start"`
	End            string   `yaml:"end"`
	Year           int      `yaml:"year,omitempty"`
	TaxRate        string   `yaml:"tax_rate"`
	BasePrefixes   []string `yaml:"base_prefixes,omitempty"`
	QuoteSuffixes  []string `yaml:"quote_suffixes,omitempty"`
	OpeningHistory bool     `yaml:"opening_history,omitempty"`
	WALDir         string   `yaml:"wal_dir,omitempty"`
}

// Get reads configs from --config yaml file or, when it is not given, from
// command line flags.
func Get() ([]Config, error) {
	return get(flag.CommandLine, os.Args[1:])
}

func get(fs *flag.FlagSet, args []string) ([]Config, error) {
	configPath := fs.String("config", "", "path to yaml config")
	input := fs.String("input", "", "path to trades csv export")
	start := fs.String("start", "", "first day of the period, example: 2024-01-01")
	end := fs.String("end", "", "last day of the period, example: 2024-12-31")
	year := fs.Int("year", 0, "calendar year, used when --start and --end are not set")
	taxRate := fs.String("taxrate", "", "tax rate applied to net gains, example: 0.2")
	prefixes := fs.String("baseassets", "", "comma separated base asset prefixes, example: BTC,ETH")
	suffixes := fs.String("quoteassets", "", "comma separated quote asset suffixes, example: USDT,BUSD")
	opening := fs.Bool("openinghistory", false, "use trades before --start to seed holdings")
	walDir := fs.String("wal", "", "directory of the summary WAL, empty disables persistence")
	portfolio := fs.String("portfolio", "", "portfolio name stored with the summary")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		return getYaml(*configPath)
	}

	c, err := ConfigTmp{
		Portfolio:      *portfolio,
		Input:          *input,
		Start:          *start,
		End:            *end,
		Year:           *year,
		TaxRate:        *taxRate,
		BasePrefixes:   splitList(*prefixes),
		QuoteSuffixes:  splitList(*suffixes),
		OpeningHistory: *opening,
		WALDir:         *walDir,
	}.parse()
	if err != nil {
		return nil, err
	}
	return []Config{c}, nil
}

func getYaml(path string) ([]Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseYaml(f)
}

func parseYaml(data []byte) ([]Config, error) {
	var configsTmp []ConfigTmp
	if err := yaml.Unmarshal(data, &configsTmp); err != nil {
		return nil, err
	}

	configs := make([]Config, 0, len(configsTmp))
	for i, c := range configsTmp {
		parsed, err := c.parse()
		if err != nil {
			return nil, fmt.Errorf("config #%d: %w", i+1, err)
		}
		configs = append(configs, parsed)
	}
	return configs, nil
}

func (c ConfigTmp) parse() (Config, error) {
	if c.Input == "" {
		return Config{}, fmt.Errorf("'input' param is required")
	}

	newConfig := Config{
		Portfolio:      c.Portfolio,
		Input:          c.Input,
		BasePrefixes:   c.BasePrefixes,
		QuoteSuffixes:  c.QuoteSuffixes,
		OpeningHistory: c.OpeningHistory,
		WALDir:         c.WALDir,
	}

	// Parse TaxRate
	if c.TaxRate == "" {
		return Config{}, fmt.Errorf("'tax_rate' param is required")
	}
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'tax_rate' param in yaml config (must be a decimal, e.g. 0.2), error: %w", err)
	}
	if rate.IsNegative() {
		return Config{}, fmt.Errorf("incorrect 'tax_rate' param, must not be negative: %s", rate.String())
	}
	newConfig.TaxRate = rate

	// Parse period, explicit bounds win over year
	switch {
	case c.Start != "" || c.End != "":
		newConfig.Start, err = time.Parse(dateLayout, c.Start)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'start' param (correct format is 2024-01-01), error: %w", err)
		}
		newConfig.End, err = time.Parse(dateLayout, c.End)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'end' param (correct format is 2024-12-31), error: %w", err)
		}
		// end day is inclusive
		newConfig.End = newConfig.End.Add(24*time.Hour - time.Nanosecond)
	case c.Year > 0:
		newConfig.Start = time.Date(c.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		newConfig.End = newConfig.Start.AddDate(1, 0, 0).Add(-time.Nanosecond)
	default:
		return Config{}, fmt.Errorf("either 'year' or 'start' and 'end' params are required")
	}
	if newConfig.End.Before(newConfig.Start) {
		return Config{}, fmt.Errorf("'end' %s is before 'start' %s", c.End, c.Start)
	}

	return newConfig, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
