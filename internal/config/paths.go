package config

import "path/filepath"

// Resolve joins name onto DataDir unless it is empty or already absolute.
func (c *Config) Resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// TimeSeriesPath is the resolved path of the case time series CSV.
func (c *Config) TimeSeriesPath() string {
	return c.Resolve(c.TimeSeriesFile)
}
