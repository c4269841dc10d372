package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvFileFlagName = "env-file"
	envFileEnvVar   = "ENV_FILE"
	defaultEnvFile  = ".env"
)

// LoadEnvFile loads the env file selected by args before the CLI parses its flags, so the config options can be
// read from it. The file named by --env-file wins over the ENV_FILE variable, and a missing default .env file is
// not an error. It returns the path of the file that was loaded, if any.
func LoadEnvFile(args []string) (string, error) {
	path, explicit := envFilePath(args)
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("loading env file %s: %w", path, err)
	}
	return path, nil
}

// envFilePath returns the absolute path of the env file to load, and whether it was chosen explicitly.
func envFilePath(args []string) (string, bool) {
	if path := envFileFlagValue(args); path != "" {
		return absPath(path), true
	}
	if path := strings.TrimSpace(os.Getenv(envFileEnvVar)); path != "" {
		return absPath(path), true
	}
	return absPath(defaultEnvFile), false
}

func envFileFlagValue(args []string) string {
	flag := "--" + EnvFileFlagName
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
		if value, found := strings.CutPrefix(arg, flag+"="); found {
			return value
		}
	}
	return ""
}

func absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
