package main

import (
	"fmt"
	"os"
	"strings"

	"studentmarket/service"
)

// CliVersion is reported by the version command.
const CliVersion = "1.0.0"

var exit = os.Exit

func main() {
	RealMain()
}

// RealMain dispatches os.Args and exits with the command's status.
func RealMain() {
	if len(os.Args) < 2 {
		printHelp()
		exit(1)
		return
	}

	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "help", "-h", "--help":
		printHelp()
	case "version":
		fmt.Printf("studentmarket version %s\n", CliVersion)
	default:
		if code := service.HandleCommand(append([]string{cmd}, os.Args[2:]...)); code != 0 {
			exit(code)
		}
	}
}

func printHelp() {
	helpText := `Usage: studentmarket <command> [options]
Commands:
  help                           Display this help message.
  version                        Show version information.
  serve   [--config <file>]      Run the marketplace on the configured address.
  init    [--config <file>]      Create an empty listing database.
  clean   [--config <file>]      Delete the listing database.
  backup  [--config <file>]      Write the listings to data/backups as JSON.
  restore [--config <file>] <file>
                                 Replace the listings with a JSON backup.

Flags may follow the command's arguments. Every command also takes
--storage-driver and --storage-path; serve takes --addr and --log-level.

Settings come from config.yaml in the working directory, the --config file,
MARKET_* environment variables (for example MARKET_STORAGE_DRIVER=sqlite)
and command-line flags, in increasing order of precedence.
`
	fmt.Println(helpText)
}
