package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port        string `mapstructure:"port"`
		MetricsPort string `mapstructure:"metrics_port"`
	} `mapstructure:"server"`
	Database struct {
		// sqlite (default) keeps one file per domain under Dir;
		// postgres is selected by setting Host.
		Driver   string `mapstructure:"driver"`
		Dir      string `mapstructure:"dir"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
	Crypt struct {
		Key string `mapstructure:"key"`
		// Comma-separated column names stored encrypted, applied to every
		// entity type that has them.
		SensitiveFields string `mapstructure:"sensitive_fields"`
	} `mapstructure:"crypt"`
	Blacklist struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"blacklist"`
	Auth struct {
		JWTSecret   string `mapstructure:"jwt_secret"`
		TokenLength int    `mapstructure:"token_length"`
	} `mapstructure:"auth"`
	Admin struct {
		Username string `mapstructure:"username"`
	} `mapstructure:"admin"`
}

// SensitiveFields returns the configured sensitive column names, trimmed.
func (c *Config) SensitiveFields() []string {
	parts := strings.Split(c.Crypt.SensitiveFields, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

func Load() *Config {
	viper.SetEnvPrefix("WAO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register keys
	viper.BindEnv("server.port")
	viper.BindEnv("server.metrics_port")
	viper.BindEnv("database.driver")
	viper.BindEnv("database.dir")
	viper.BindEnv("database.host")
	viper.BindEnv("database.port")
	viper.BindEnv("database.user")
	viper.BindEnv("database.password")
	viper.BindEnv("database.name")
	viper.BindEnv("crypt.key")
	viper.BindEnv("crypt.sensitive_fields")
	viper.BindEnv("blacklist.dir")
	viper.BindEnv("auth.jwt_secret")
	viper.BindEnv("auth.token_length")
	viper.BindEnv("admin.username")

	// Defaults
	viper.SetDefault("server.port", ":8080")
	viper.SetDefault("server.metrics_port", ":9091")
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dir", "./databases/")
	viper.SetDefault("crypt.sensitive_fields", "password,token")
	viper.SetDefault("blacklist.dir", "./blacklists/")
	viper.SetDefault("auth.token_length", 64)
	viper.SetDefault("admin.username", "admin")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	if cfg.Crypt.Key == "" {
		// Not fatal: operations touching sensitive fields will fail with
		// an explicit no-crypt-key error instead of storing plaintext.
		log.Println("Warning: WAO_CRYPT_KEY is not set, sensitive fields cannot be written")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Println("Warning: WAO_AUTH_JWT_SECRET is not set, login tokens are disabled")
	}

	return &cfg
}
