package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	apiIDVar      = "API_ID"
	apiHashVar    = "API_HASH"
	jwtKeyVar     = "JWT_KEY"
	jwtSignInVar  = "JWT_SIGNIN_KEY"
	loginTTLVar   = "LOGIN_TTL"
	loginSweepVar = "LOGIN_SWEEP_INTERVAL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "5000")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Filegram")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

type Telegram struct{}

var _ TelegramConfig = Telegram{}

func (Telegram) GetAppID() int {
	id, err := strconv.Atoi(os.Getenv(apiIDVar))
	if err != nil {
		return 0
	}
	return id
}

func (Telegram) GetAppHash() string {
	return GetEnv(apiHashVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
