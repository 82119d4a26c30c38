package service

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"studentmarket/app/config"
	"studentmarket/app/repositories"
)

// Backup directory - variable to allow testing with different paths
var backupDir = "data/backups"

// openKV opens the slot store selected by cfg.
func openKV(cfg config.StorageConfig) (repositories.KV, error) {
	switch cfg.Driver {
	case config.DriverBadger:
		return repositories.NewBadgerKV(cfg.Path)
	case config.DriverSQLite:
		return repositories.NewSQLiteKV(cfg.Path)
	case config.DriverMemory:
		return repositories.NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// storageExists reports whether the on-disk store has been created.
func storageExists(cfg config.StorageConfig) bool {
	if cfg.Driver == config.DriverMemory {
		return false
	}
	_, err := os.Stat(cfg.Path)
	return !errors.Is(err, os.ErrNotExist)
}

// confirm asks a yes/no question on stdin; anything but y/Y is a no.
func confirm(question string) bool {
	fmt.Print(question + " [y/N] ")
	var response string
	fmt.Scanln(&response)
	return strings.EqualFold(strings.TrimSpace(response), "y")
}
