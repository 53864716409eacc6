package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if one exists.
// Variables already present in the environment take precedence, which is
// godotenv's default behavior.
func LoadDotEnv() error {
	envFiles := []string{
		".env",
		"../.env",
	}

	// Also check next to the executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		envFiles = append(envFiles,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		return godotenv.Load(envFile)
	}

	// No .env file found, system env vars are enough
	return nil
}
