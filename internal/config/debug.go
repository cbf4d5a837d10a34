package config

import (
	"os"
	"strconv"
)

func IsDebug() bool {
	v, err := strconv.ParseBool(os.Getenv("ENGAGE_DEBUG"))
	if err != nil {
		return false
	}
	return v
}

// GetRuntimePath resolves the runtime directory before the full config is
// parsed, so the .env file inside it can be loaded first.
func GetRuntimePath() string {
	if p := os.Getenv("ENGAGE_RUNTIME_PATH"); p != "" {
		return p
	}
	return ".engage"
}
