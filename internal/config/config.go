package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Endpoint    string        `mapstructure:"endpoint"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type HeyGenConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Avatar   string        `mapstructure:"avatar"`
	Quality  string        `mapstructure:"quality"`
	TaskType string        `mapstructure:"task_type"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Mode        string        `mapstructure:"mode"`
	Port        int           `mapstructure:"port"`
	StaticPath  string        `mapstructure:"static_path"`
	UploadsPath string        `mapstructure:"uploads_path"`
	ReadLimit   int64         `mapstructure:"read_limit"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	Secret      string        `mapstructure:"secret"`
	MaxRoomSize int           `mapstructure:"max_room_size"`
	STUNURLs    []string      `mapstructure:"stun_urls"`

	Gemini GeminiConfig `mapstructure:"gemini"`
	HeyGen HeyGenConfig `mapstructure:"heygen"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("uploads_path", "./web/uploads")
	v.SetDefault("read_limit", 4<<20) // data-URI jpeg attachments are large
	v.SetDefault("ping_period", "54s")
	v.SetDefault("max_room_size", 2)
	v.SetDefault("stun_urls", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
	})

	v.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.vision_model", "gemini-2.0-flash")
	v.SetDefault("gemini.timeout", "30s")

	v.SetDefault("heygen.endpoint", "https://api.heygen.com/v1")
	v.SetDefault("heygen.avatar", "Wayne_20240711")
	v.SetDefault("heygen.quality", "high")
	v.SetDefault("heygen.task_type", "repeat")
	v.SetDefault("heygen.timeout", "30s")

	v.SetEnvPrefix("CALMCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
