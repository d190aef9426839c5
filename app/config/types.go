package config

// Project configuration types, loaded from one YAML file per project.

type Config struct {
	Name        string             `yaml:"-"` // Derived from filename (without .yml extension)
	URL         string             `yaml:"url"`
	DisplayName string             `yaml:"name"`
	Description string             `yaml:"description"`
	Settings    ConfigSettings     `yaml:"settings"`
	Keywords    []ConfigKeyword    `yaml:"keywords"`
	Users       []ConfigUser       `yaml:"users"`
	Credentials []ConfigCredential `yaml:"credentials"`
}

type ConfigSettings struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"` // seconds, per external API call
}

type ConfigKeyword struct {
	Text      string `yaml:"text"`
	Category  string `yaml:"category"`
	Priority  string `yaml:"priority"` // high, medium, low
	Intent    string `yaml:"intent"`
	GeoTarget string `yaml:"geo_target"`
	Language  string `yaml:"language"`
}

type ConfigUser struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// ConfigCredential is the opaque key-value bag for one external service.
// Keys are service-specific and never interpreted here.
type ConfigCredential struct {
	Service string            `yaml:"service"`
	Values  map[string]string `yaml:"values"`
}
