package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Env         string `mapstructure:"ENV"`
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AdminKey    string `mapstructure:"ADMIN_KEY"`
	CORSAllowed string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	OrgID    string `mapstructure:"ORG_ID"`
	Timezone string `mapstructure:"TIMEZONE"`

	AMQPURL   string `mapstructure:"AMQP_URL"`
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// Dispatch planning parameters.
	MaxVehicleCapacity   int `mapstructure:"MAX_VEHICLE_CAPACITY"`
	DefaultPickupMinutes int `mapstructure:"DEFAULT_PICKUP_MINUTES"`
	PickupWindowMinutes  int `mapstructure:"PICKUP_WINDOW_MINUTES"`
	DriveBufferMinutes   int `mapstructure:"DRIVE_BUFFER_MINUTES"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("ORG_ID", "org_default")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("MAX_VEHICLE_CAPACITY", 16)
	v.SetDefault("DEFAULT_PICKUP_MINUTES", 5)
	v.SetDefault("PICKUP_WINDOW_MINUTES", 90)
	v.SetDefault("DRIVE_BUFFER_MINUTES", 30)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
