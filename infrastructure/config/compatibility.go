package config

import (
	"os"

	"nodespace-core/domain/compatibility"
	pkgerrors "nodespace-core/pkg/errors"
)

// LoadCompatibilityTable reads a YAML compatibility table. An empty path
// returns the built-in table.
func LoadCompatibilityTable(path string) (*compatibility.Table, error) {
	if path == "" {
		return compatibility.DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.ConfigurationError(configService, "COMPATIBILITY_TABLE", "a readable YAML file").
			WithDetail("path", path).
			WithCause(err)
	}
	table, err := compatibility.ParseTable(data)
	if err != nil {
		return nil, pkgerrors.Wrap(err, configService, "loading compatibility table "+path)
	}
	return table, nil
}

// CompatibilityValidator builds the validator for the configured table
func (c *Config) CompatibilityValidator() (*compatibility.Validator, error) {
	table, err := LoadCompatibilityTable(c.CompatibilityTable)
	if err != nil {
		return nil, err
	}
	return compatibility.NewValidator(table)
}
