package config

import "fmt"

type Config interface {
	EnvConfig
	TelegramConfig
	TokenConfig
	LoginConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type TelegramConfig interface {
	GetAppID() int
	GetAppHash() string
}

type mainConfig struct {
	EnvVars
	Telegram
	Tokens
	Login
}

func New() Config {
	return mainConfig{}
}

// Validate checks the configuration values that have no usable default.
// It is the only place in the process allowed to produce a fatal error.
func Validate(c Config) error {
	if c.GetAppID() == 0 {
		return fmt.Errorf("API_ID is required")
	}
	if c.GetAppHash() == "" {
		return fmt.Errorf("API_HASH is required")
	}
	if len(c.GetTokenKey()) == 0 {
		return fmt.Errorf("JWT_KEY is required")
	}
	if len(c.GetSignInTokenKey()) == 0 {
		return fmt.Errorf("JWT_SIGNIN_KEY is required")
	}
	return nil
}
