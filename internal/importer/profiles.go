package importer

import (
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Profile is a named set of import settings, e.g. for one bank's export.
// Empty fields keep the current value.
type Profile struct {
	Delimiter    string  `yaml:"delimiter"`
	DecimalComma *bool   `yaml:"decimalComma"`
	DatePattern  string  `yaml:"datePattern"`
	Columns      Columns `yaml:"columns"`
}

type Profiles map[string]Profile

type profilesFile struct {
	Profiles Profiles `yaml:"profiles"`
}

// LoadProfiles reads a YAML file of the form
//
//	profiles:
//	  n26:
//	    delimiter: ","
//	    columns: {date: "Booking Date", amount: "Amount (EUR)"}
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import profiles: %w", err)
	}
	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse import profiles %s: %w", path, err)
	}
	for name, p := range f.Profiles {
		if p.Delimiter != "" && utf8.RuneCountInString(p.Delimiter) != 1 {
			return nil, fmt.Errorf("profile %s: delimiter must be a single character", name)
		}
	}
	return f.Profiles, nil
}

// Apply overlays p on opts.
func (p Profile) Apply(opts Options) Options {
	if p.Delimiter != "" {
		r, _ := utf8.DecodeRuneInString(p.Delimiter)
		opts.Delimiter = r
	}
	if p.DecimalComma != nil {
		opts.DecimalComma = *p.DecimalComma
	}
	if p.DatePattern != "" {
		opts.DatePattern = p.DatePattern
	}
	opts.Columns = opts.Columns.Merge(p.Columns)
	return opts
}

// Merge returns c with every non-empty column of o applied.
func (c Columns) Merge(o Columns) Columns {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Date, o.Date)
	set(&c.Account, o.Account)
	set(&c.AccountState, o.AccountState)
	set(&c.Amount, o.Amount)
	set(&c.Description, o.Description)
	set(&c.Category, o.Category)
	return c
}
