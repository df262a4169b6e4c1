package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"yasp/internal/config"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "yasp %s\n", Version)
		fmt.Fprintf(os.Stderr, "Fetches OpenAPI documents and reconciles their servers list\n\n")
		fmt.Fprintf(os.Stderr, "Usage: yasp [options]\n\n")
		fmt.Fprintf(os.Stderr, "Server:\n")
		fmt.Fprintf(os.Stderr, "  --config <path>             Config file (default: %s)\n", config.DefaultPath)
		fmt.Fprintf(os.Stderr, "  --bind <addr>               Listen address, overrides server.listen\n")
		fmt.Fprintf(os.Stderr, "  --env-file <path>           Env file loaded before the config is read\n")
		fmt.Fprintf(os.Stderr, "  --init-config               Write a default config to --config and exit\n\n")
		fmt.Fprintf(os.Stderr, "Logging:\n")
		fmt.Fprintf(os.Stderr, "  --log-format <format>       text or json (overrides logging.format)\n")
		fmt.Fprintf(os.Stderr, "  --log-level <level>         debug, info, warn, error (overrides logging.level)\n\n")
		fmt.Fprintf(os.Stderr, "Other:\n")
		fmt.Fprintf(os.Stderr, "  --version, -v               Show version information\n")
		fmt.Fprintf(os.Stderr, "  --help, -h                  Show this help message\n")
	}
}

var errInitAborted = errors.New("config file exists, not overwritten")

// initConfigFile writes the default config. An existing file is only
// replaced after confirmation on an interactive terminal.
func initConfigFile(path string, in io.Reader, out io.Writer, interactive bool) error {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return fmt.Errorf("get home dir: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		if !interactive {
			return fmt.Errorf("%w: %s", errInitAborted, expanded)
		}
		fmt.Fprintf(out, "%s exists. Overwrite? [y/N] ", expanded)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			return errInitAborted
		}
	}
	return config.GenerateDefault(expanded)
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
