package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        int            `mapstructure:"port"`
	DatabaseURL string         `mapstructure:"database_url"`
	DataDir     string         `mapstructure:"data_dir"`
	OpenAI      OpenAIConfig   `mapstructure:"openai"`
	WhatsApp    WhatsAppConfig `mapstructure:"whatsapp"`
	Campaign    CampaignConfig `mapstructure:"campaign"`
	AMQP        AMQPConfig     `mapstructure:"amqp"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type WhatsAppConfig struct {
	DataDir  string `mapstructure:"data_dir"`
	Headless bool   `mapstructure:"headless"`
}

type CampaignConfig struct {
	AdminPhone        string        `mapstructure:"admin_phone"`
	DailyCap          int           `mapstructure:"daily_cap"`
	SessionBreakEvery int           `mapstructure:"session_break_every"`
	MinDelay          time.Duration `mapstructure:"min_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	MinSessionBreak   time.Duration `mapstructure:"min_session_break"`
	MaxSessionBreak   time.Duration `mapstructure:"max_session_break"`
	ScheduleStartHour int           `mapstructure:"schedule_start_hour"`
	ScheduleEndHour   int           `mapstructure:"schedule_end_hour"`
	Timezone          string        `mapstructure:"timezone"`
}

// AMQPConfig configures the optional batch-event publisher. An empty URL
// disables it.
type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

// Load reads configuration from environment variables with sane defaults.
// godotenv.Load in main puts .env values into the environment first.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 3478)
	v.SetDefault("data_dir", "logs")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.8)
	v.SetDefault("whatsapp.data_dir", ".wa_session")
	v.SetDefault("whatsapp.headless", true)
	v.SetDefault("campaign.daily_cap", 50)
	v.SetDefault("campaign.session_break_every", 10)
	v.SetDefault("campaign.min_delay", 8*time.Second)
	v.SetDefault("campaign.max_delay", 15*time.Second)
	v.SetDefault("campaign.min_session_break", 2*time.Minute)
	v.SetDefault("campaign.max_session_break", 5*time.Minute)
	v.SetDefault("campaign.schedule_start_hour", 9)
	v.SetDefault("campaign.schedule_end_hour", 17)
	v.SetDefault("campaign.timezone", "Africa/Nairobi")
	v.SetDefault("amqp.queue", "reactivation_events")

	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		config.DatabaseURL = dbURL
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if phone := v.GetString("ADMIN_PHONE"); phone != "" {
		config.Campaign.AdminPhone = phone
	}
	if amqpURL := v.GetString("AMQP_URL"); amqpURL != "" {
		config.AMQP.URL = amqpURL
	}

	return &config, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Campaign.ScheduleStartHour >= c.Campaign.ScheduleEndHour {
		return fmt.Errorf("schedule window is empty: start %d >= end %d",
			c.Campaign.ScheduleStartHour, c.Campaign.ScheduleEndHour)
	}
	return nil
}

// Location resolves the campaign time zone, falling back to local time when
// the zone name cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Campaign.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
