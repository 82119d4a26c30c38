package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(f func()) string {
	var buf bytes.Buffer
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan bool)
	go func() {
		_, _ = io.Copy(&buf, r)
		done <- true
	}()

	f()
	_ = w.Close()
	os.Stdout = oldStdout
	<-done

	return buf.String()
}

func callMain() (int, string) {
	exitCode := 0
	oldExit := exit
	defer func() { exit = oldExit }()
	exit = func(code int) {
		exitCode = code
		panic("exit")
	}

	output := captureOutput(func() {
		defer func() {
			if r := recover(); r != nil {
				if r != "exit" {
					panic(r)
				}
			}
		}()
		RealMain()
	})

	return exitCode, output
}

func TestMain(t *testing.T) {
	// Save original args
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	// Run from an empty directory so no config.yaml or data dir is picked up.
	t.Chdir(t.TempDir())

	tests := []struct {
		name           string
		args           []string
		expectedExit   int
		expectedOutput string
	}{
		{
			name:           "no arguments",
			args:           []string{"studentmarket"},
			expectedExit:   1,
			expectedOutput: "Usage: studentmarket <command>",
		},
		{
			name:           "help command",
			args:           []string{"studentmarket", "help"},
			expectedExit:   0,
			expectedOutput: "Usage: studentmarket <command> [options]",
		},
		{
			name:           "version command",
			args:           []string{"studentmarket", "version"},
			expectedExit:   0,
			expectedOutput: "studentmarket version " + CliVersion,
		},
		{
			name:           "unknown command",
			args:           []string{"studentmarket", "unknown"},
			expectedExit:   1,
			expectedOutput: "Unknown command: unknown",
		},
		{
			name:           "restore without file",
			args:           []string{"studentmarket", "restore"},
			expectedExit:   1,
			expectedOutput: "Error: backup file path required for restore",
		},
		{
			name:           "backup without database",
			args:           []string{"studentmarket", "backup"},
			expectedExit:   1,
			expectedOutput: "No database exists to backup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			exitCode, output := callMain()

			assert.Contains(t, output, tt.expectedOutput)
			assert.Equal(t, tt.expectedExit, exitCode)
		})
	}
}

func TestPrintHelp(t *testing.T) {
	output := captureOutput(func() {
		printHelp()
	})

	// Verify help text contains all commands
	assert.Contains(t, output, "Usage: studentmarket")
	for _, cmd := range []string{"help", "version", "serve", "init", "clean", "backup", "restore", "--config", "MARKET_"} {
		assert.Contains(t, output, cmd)
	}
}
