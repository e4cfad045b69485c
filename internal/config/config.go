package config

// Config holds app configuration
type Config struct {
	// Workers is how many files unzip extracts at once.
	// Zero or less means one per CPU.
	Workers int `mapstructure:"workers"`

	// Overwrite makes unzip replace files that already exist
	// instead of skipping them
	Overwrite bool `mapstructure:"overwrite"`

	NoProgress   bool   `mapstructure:"no_progress"`
	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`
}
