package env

import (
	"os"

	"github.com/joho/godotenv"
)

var Env map[string]string

// GetEnv reads a key from the loaded .env map, falling back to the process
// environment (Docker/tests inject variables without a .env file).
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func SetupEnvFile() {
	envFiles := []string{
		".env",       // project root
		"../../.env", // from cmd/ucbitpay or cmd/migrate
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}

	panic("No .env file found in any of the expected locations")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
