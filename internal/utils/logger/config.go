// internal/utils/logger/config.go
package logger

type Config struct {
	LogFile    string `mapstructure:"file" yaml:"file"`
	Level      string `mapstructure:"level" yaml:"level"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // мегабайты
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // дни
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // количество файлов
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	// Development включает debug и caller.
	Development bool `mapstructure:"development" yaml:"development"`
	// Console дублирует логи в stderr.
	Console bool `mapstructure:"console" yaml:"console"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		LogFile:    "pumpctl.log",
		Level:      "info",
		MaxSize:    50,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
}
