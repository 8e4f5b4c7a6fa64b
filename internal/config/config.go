// Package config loads process configuration from an optional jigtrack.yaml
// and JIGTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// AppConfig is the process configuration.
type AppConfig struct {
	General  GeneralConfig
	HTTP     HTTPConfig
	Storage  StorageConfig
	Settings SettingsConfig
	Auth     AuthConfig
}

type GeneralConfig struct {
	LogLevel  string
	LogFormat string
	LogDir    string
}

type HTTPConfig struct {
	ListenAddr string
}

type StorageConfig struct {
	JigDB    string
	EnumDB   string
	JigTable string
}

type SettingsConfig struct {
	Path string
}

type AuthConfig struct {
	AdminUser     string
	AdminPassword string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "json")
	v.SetDefault("general.log_dir", "logs")
	v.SetDefault("http.listen_addr", "127.0.0.1:8765")
	v.SetDefault("storage.jig_db", "datas/jig.db")
	v.SetDefault("storage.enum_db", "datas/enum.db")
	v.SetDefault("storage.jig_table", "Jig")
	v.SetDefault("settings.path", "config.ini")
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.admin_password", "ort")
}

// Load reads jigtrack.yaml from the given directories (first match wins) and
// applies environment overrides such as JIGTRACK_HTTP_LISTEN_ADDR. A missing
// file is not an error.
func Load(dirs ...string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("jigtrack")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigName("jigtrack")
	v.SetConfigType("yaml")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := AppConfig{
		General: GeneralConfig{
			LogLevel:  v.GetString("general.log_level"),
			LogFormat: v.GetString("general.log_format"),
			LogDir:    v.GetString("general.log_dir"),
		},
		HTTP: HTTPConfig{
			ListenAddr: v.GetString("http.listen_addr"),
		},
		Storage: StorageConfig{
			JigDB:    v.GetString("storage.jig_db"),
			EnumDB:   v.GetString("storage.enum_db"),
			JigTable: v.GetString("storage.jig_table"),
		},
		Settings: SettingsConfig{
			Path: v.GetString("settings.path"),
		},
		Auth: AuthConfig{
			AdminUser:     v.GetString("auth.admin_user"),
			AdminPassword: v.GetString("auth.admin_password"),
		},
	}
	if cfg.Storage.JigTable == "" {
		return cfg, errors.New("storage.jig_table must not be empty")
	}
	return cfg, nil
}
