package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"studentmarket/app/config"
	"studentmarket/app/models"
	"studentmarket/app/repositories"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// HandleCommand runs a marketplace subcommand and returns its exit code.
// Flags may appear anywhere after the command name; unknown flags and stray
// arguments are rejected.
func HandleCommand(args []string) int {
	if len(args) < 1 {
		printHelp()
		return 1
	}

	code := 0
	root := newRootCommand(&code)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	return code
}

func newRootCommand(code *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "studentmarket",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				fmt.Printf("Unknown command: %s\n\n", args[0])
			}
			printHelp()
			*code = 1
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetHelpFunc(func(*cobra.Command, []string) { printHelp() })

	flags := root.PersistentFlags()
	flags.String("config", "", "path to a YAML config file")
	flags.String("storage-driver", "", "storage driver: badger, sqlite or memory")
	flags.String("storage-path", "", "database path for the on-disk drivers")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the marketplace HTTP service",
		Args:  cobra.NoArgs,
		RunE: withConfig(code, func(cfg *config.Config, _ []string) int {
			return RunAppServer(cfg)
		}),
	}
	serve.Flags().String("addr", "", "listen address, host:port")
	serve.Flags().String("log-level", "", "debug, info, warn or error")

	restoreCmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace the listings with a JSON backup",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("backup file path required for restore")
			}
			return nil
		},
		RunE: withConfig(code, func(cfg *config.Config, args []string) int {
			return restore(cfg, args[0])
		}),
	}

	root.AddCommand(
		serve,
		storageCommand(code, "clean", "Delete the listing database", clean),
		storageCommand(code, "init", "Initialize a new empty database", initDb),
		storageCommand(code, "backup", "Write the listings to data/backups as JSON", backup),
		restoreCmd,
	)
	return root
}

func storageCommand(code *int, use, short string, run func(*config.Config) int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withConfig(code, func(cfg *config.Config, _ []string) int {
			return run(cfg)
		}),
	}
}

// withConfig loads the configuration from the command's flags before run.
func withConfig(code *int, run func(*config.Config, []string) int) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFlags(cmd.Flags())
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			*code = 1
			return nil
		}
		*code = run(cfg, args)
		return nil
	}
}

// printHelp prints help for the marketplace commands.
func printHelp() {
	helpText := `Usage: studentmarket <command> [--config <file>] [flags]

Commands:
  serve                           Run the marketplace HTTP service
  clean                           Delete the listing database
  init                            Initialize a new empty database
  backup                          Write the listings to data/backups as JSON
  restore <file>                  Replace the listings with a JSON backup
  version                         Show version information
  help                            Display this help message

Flags:
  --config <file>                 YAML config file
  --storage-driver <driver>       badger, sqlite or memory
  --storage-path <path>           Database path for the on-disk drivers
  --addr <host:port>              Listen address (serve only)
  --log-level <level>             Log level (serve only)
`
	fmt.Println(helpText)
}

// clean removes the database.
func clean(cfg *config.Config) int {
	if !storageExists(cfg.Storage) {
		fmt.Println("Database is already clean (does not exist)")
		return 0
	}

	if !confirm("Are you sure you want to clean the database? This cannot be undone.") {
		fmt.Println("Operation cancelled")
		return 0
	}

	if err := os.RemoveAll(cfg.Storage.Path); err != nil {
		fmt.Printf("Failed to clean database: %v\n", err)
		return 1
	}
	fmt.Println("Database cleaned successfully")
	return 0
}

// initDb creates the database with an empty listing collection.
func initDb(cfg *config.Config) int {
	if cfg.Storage.Driver == config.DriverMemory {
		fmt.Println("The memory driver keeps nothing on disk; nothing to initialize")
		return 0
	}
	if storageExists(cfg.Storage) {
		fmt.Println("Database already exists. Use 'clean' first if you want to reinitialize.")
		return 0
	}

	if cfg.Storage.Driver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			fmt.Printf("Failed to create database directory: %v\n", err)
			return 1
		}
	}

	kv, err := openKV(cfg.Storage)
	if err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		return 1
	}
	defer kv.Close()

	repo := repositories.NewListingRepository(kv, cfg.Storage.Key, zap.NewNop())
	if err := repo.Save(context.Background(), []*models.Listing{}); err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		return 1
	}

	fmt.Println("Database initialized successfully")
	return 0
}

// backup writes the current listings to a timestamped JSON file.
func backup(cfg *config.Config) int {
	if !storageExists(cfg.Storage) {
		fmt.Println("No database exists to backup")
		return 1
	}

	kv, err := openKV(cfg.Storage)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer kv.Close()

	listings := repositories.NewListingRepository(kv, cfg.Storage.Key, zap.NewNop()).Load(context.Background())
	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode listings: %v\n", err)
		return 1
	}

	if err := os.MkdirAll(backupDir, 0755); err != nil {
		fmt.Printf("Failed to create backup directory: %v\n", err)
		return 1
	}
	backupFile := filepath.Join(backupDir, fmt.Sprintf("backup_%d.json", time.Now().Unix()))
	if err := os.WriteFile(backupFile, data, 0644); err != nil {
		fmt.Printf("Failed to write backup file: %v\n", err)
		return 1
	}

	fmt.Printf("Database backed up successfully to %s (%d listings)\n", backupFile, len(listings))
	return 0
}

// restore replaces the stored listings with the contents of a JSON backup.
func restore(cfg *config.Config, backupFile string) int {
	data, err := os.ReadFile(backupFile)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Backup file does not exist: %s\n", backupFile)
		return 1
	}
	if err != nil {
		fmt.Printf("Failed to read backup file: %v\n", err)
		return 1
	}

	listings, err := decodeBackup(data)
	if err != nil {
		fmt.Printf("Invalid backup file: %v\n", err)
		return 1
	}

	if cfg.Storage.Driver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			fmt.Printf("Failed to create database directory: %v\n", err)
			return 1
		}
	}

	kv, err := openKV(cfg.Storage)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer kv.Close()

	ctx := context.Background()
	repo := repositories.NewListingRepository(kv, cfg.Storage.Key, zap.NewNop())
	if existing := repo.Load(ctx); len(existing) > 0 {
		if !confirm(fmt.Sprintf("Database holds %d listings. Do you want to replace them?", len(existing))) {
			fmt.Println("Operation cancelled")
			return 1
		}
	}

	if err := repo.Save(ctx, listings); err != nil {
		fmt.Printf("Failed to restore database: %v\n", err)
		return 1
	}

	fmt.Printf("Database restored successfully (%d listings)\n", len(listings))
	return 0
}

// decodeBackup parses a backup and checks every listing before anything is written.
func decodeBackup(data []byte) ([]*models.Listing, error) {
	var listings []*models.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("not a listing array: %w", err)
	}

	seen := make(map[string]bool, len(listings))
	for i, l := range listings {
		if l == nil {
			return nil, fmt.Errorf("entry %d is null", i)
		}
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("listing %d (%s): %w", i, l.ID, err)
		}
		if seen[l.ID] {
			return nil, fmt.Errorf("duplicate listing id %s", l.ID)
		}
		seen[l.ID] = true
	}
	if listings == nil {
		listings = []*models.Listing{}
	}
	return listings, nil
}
