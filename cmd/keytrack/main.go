// keytrack classifies keyboard event streams into hotkeys and typed text.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"keytrack/internal/config"
	"keytrack/internal/logging"
)

var (
	configPath   = flag.String("config", "", "path to config file")
	scriptFormat = flag.String("format", "", "script format: json, jsonl or yaml (default: by extension)")
	jsonOutput   = flag.Bool("json", false, "print notifications as JSON lines")
	verbose      = flag.Bool("v", false, "enable debug logging")
	topLimit     = flag.Int("top", 0, "history: show the N most used combinations")
)

// errUsage signals that usage has already been printed.
var errUsage = errors.New("usage")

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Args()[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(cmd string, args []string, stdin io.Reader, stdout io.Writer) error {
	switch cmd {
	case "replay":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: keytrack replay <script>")
			return errUsage
		}
		return cmdReplay(args[0], stdout)
	case "run":
		return cmdRun(stdin, stdout)
	case "format":
		return cmdFormat(args, stdout)
	case "classify":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: keytrack classify <key> [key...]")
			return errUsage
		}
		return cmdClassify(args, stdout)
	case "history":
		session := ""
		if len(args) > 0 {
			session = args[0]
		}
		return cmdHistory(session, stdout)
	case "config":
		action := "show"
		if len(args) > 0 {
			action = args[0]
		}
		return cmdConfig(action, stdout)
	case "schema":
		return cmdSchema(stdout)
	case "help":
		usage()
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		return errUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `keytrack - hotkey and typing classifier

Usage: keytrack [options] <command> [args]

Commands:
  replay <script>        Replay an event script and print notifications
  run                    Read JSON lines events from stdin in real time
  format <key...>        Print the canonical combination of the given keys
  classify <key...>      Press the given keys and report the hotkey decision
  history [session]      List journal sessions, or one session's notifications
  config [show|init|validate|path]
                         Inspect or create the configuration file
  schema                 Print the event script JSON schema
  help                   Show this help message

Options:
  -config <path>  Path to config file (default: platform config dir)
  -format <fmt>   Script format: json, jsonl or yaml
  -json           Print notifications as JSON lines
  -top <n>        history: show the n most used combinations
  -v              Enable debug logging`)
}

func loadConfig() (*config.Config, error) {
	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) (*logging.Logger, error) {
	logCfg := cfg.LoggingConfig()
	if *verbose {
		logCfg.Level = logging.LevelDebug
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("set up logging: %w", err)
	}
	logging.SetDefault(logger)
	return logger, nil
}
