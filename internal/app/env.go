package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// envFileVar lists dotenv files to read instead of ".env", comma separated.
const envFileVar = "GRABBER_ENV_FILE"

// LoadEnv reads dotenv files into the process environment before the config
// is parsed, so the bot token and the legacy names (TG_BOT_TOKEN,
// PROCESS_TIMEOUT) can live there. Variables already set are not
// overridden. Missing files are skipped; the loaded ones are returned.
func LoadEnv() ([]string, error) {
	var loaded []string
	for _, file := range envFiles() {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("failed to load %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

func envFiles() []string {
	v := os.Getenv(envFileVar)
	if v == "" {
		return []string{".env"}
	}
	var files []string
	for _, f := range strings.Split(v, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}
