// Package config loads runtime settings from .env files and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the settings shared by the library commands.
type Config struct {
	Store       string
	BooksFile   string
	MembersFile string
	DBPath      string
	LogPath     string
	Verbose     bool
}

// Load reads .env and .env.local (never overriding variables already set
// in the environment) and then builds a Config from LIBRARY_* variables.
func Load() Config {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return Config{
		Store:       getEnv("LIBRARY_STORE", "file"),
		BooksFile:   getEnv("LIBRARY_BOOKS_FILE", "books.csv"),
		MembersFile: getEnv("LIBRARY_MEMBERS_FILE", "members.csv"),
		DBPath:      getEnv("LIBRARY_DB", "library.db"),
		LogPath:     os.Getenv("LIBRARY_LOG"),
		Verbose:     getBool("LIBRARY_VERBOSE"),
	}
}

// Validate checks the store selection and the paths it needs.
func (c Config) Validate() error {
	switch c.Store {
	case "file":
		if c.BooksFile == "" || c.MembersFile == "" {
			return fmt.Errorf("file store needs both a books and a members file")
		}
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("sqlite store needs a database path")
		}
	default:
		return fmt.Errorf("unknown store %q (want file or sqlite)", c.Store)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
