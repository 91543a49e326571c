package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "CATMINER_"

// LoadEnvFiles loads .env and .env.local from the working directory if they
// exist. Variables already present in the process environment win. It
// returns the files that were loaded.
func LoadEnvFiles() ([]string, error) {
	var loaded []string
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		if err := godotenv.Load(name); err != nil {
			return loaded, err
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}
