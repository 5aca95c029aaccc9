package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	"keytrack/internal/config"
	"keytrack/internal/journal"
	"keytrack/internal/keytrack"
	"keytrack/internal/listener"
	"keytrack/internal/logging"
	"keytrack/internal/metrics"
	"keytrack/internal/relay"
	"keytrack/internal/script"
	"keytrack/internal/shortcut"
)

// session wires a listener to the optional journal and relay.
type session struct {
	listener *listener.Listener
	journal  *journal.Journal
	relay    *relay.Relay
	log      *logging.Logger
}

func newSession(ctx context.Context, cfg *config.Config, clock keytrack.Clock, out io.Writer) (*session, error) {
	logger, err := setupLogging(cfg)
	if err != nil {
		return nil, err
	}

	opts, err := listener.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Clock = clock
	opts.Logger = logger

	s := &session{listener: listener.New(opts), log: logger}
	s.listener.Handle(func(n listener.Notification) {
		printNotification(out, n)
	})

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			s.close()
			return nil, err
		}
		s.journal = j
		j.Attach(s.listener, logger)
	}

	if cfg.Relay.Enabled {
		r := relay.New(logger)
		if cfg.Relay.MetricsPath != "" {
			registry := metrics.NewRegistry("keytrack")
			metrics.NewListenerMetrics(registry).Attach(s.listener)
			r.Mount(cfg.Relay.MetricsPath, registry.HTTPHandler())
		}
		if err := r.Start(ctx, cfg.Relay.Addr, cfg.Relay.Path); err != nil {
			s.close()
			return nil, err
		}
		s.relay = r
		r.Attach(s.listener)
	}

	logger.Info("session started", "session_id", s.listener.SessionID())
	return s, nil
}

func (s *session) close() {
	s.listener.Stop()
	if s.journal != nil {
		if err := s.journal.EndSession(s.listener.SessionID(), time.Now()); err != nil && !errors.Is(err, journal.ErrNotFound) {
			s.log.Warn("end journal session", "error", err)
		}
		s.journal.Close()
	}
	if s.relay != nil {
		s.relay.Close()
	}
	s.log.Close()
}

func printNotification(w io.Writer, n listener.Notification) {
	if *jsonOutput {
		data, err := json.Marshal(n)
		if err != nil {
			return
		}
		fmt.Fprintln(w, string(data))
		return
	}

	switch n.Kind {
	case listener.KindHotkey:
		if n.Action != "" {
			fmt.Fprintf(w, "%-7s %-20s [%s]\n", n.Kind, n.Combination, n.Action)
		} else {
			fmt.Fprintf(w, "%-7s %s\n", n.Kind, n.Combination)
		}
	case listener.KindTyping:
		fmt.Fprintf(w, "%-7s %q\n", n.Kind, n.Text)
	}
}

func openScript(path string) ([]script.Step, error) {
	format := script.FormatFromPath(path)
	if *scriptFormat != "" {
		f, err := script.ParseFormat(*scriptFormat)
		if err != nil {
			return nil, err
		}
		format = f
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		r = f
	}
	return script.Decode(r, format)
}

func cmdReplay(path string, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	steps, err := openScript(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := script.NewClock(time.Now())
	s, err := newSession(ctx, cfg, clk.Now, out)
	if err != nil {
		return err
	}
	defer s.close()

	if _, err := script.Replay(ctx, s.listener, clk, steps); err != nil {
		return err
	}
	s.log.Info("replay finished", "steps", len(steps))
	return nil
}

func cmdRun(stdin io.Reader, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx, cfg, time.Now, out)
	if err != nil {
		return err
	}
	defer s.close()

	if path := *configPath; path != "" {
		loader := config.NewLoader(path)
		if _, err := loader.Load(); err == nil {
			loader.OnChange(func(c *config.Config) {
				table, err := shortcut.NewTable(c.Shortcuts)
				if err != nil {
					s.log.Warn("ignoring shortcut change", "error", err)
					return
				}
				s.listener.SetShortcuts(table)
				s.listener.SetTypingTimeout(c.TypingTimeout())
				s.log.Info("config reloaded")
			})
			if err := loader.Watch(); err != nil {
				s.log.Warn("config watch unavailable", "error", err)
			}
			defer loader.Close()
		}
	}

	events, errc := script.StreamEvents(ctx, stdin)
	if err := s.listener.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cmdFormat(names []string, out io.Writer) error {
	fmt.Fprintln(out, keytrack.FormatCombination(splitKeys(names)...))
	return nil
}

func cmdClassify(names []string, out io.Writer) error {
	names = splitKeys(names)
	t := keytrack.New()
	for _, n := range names {
		t.Press(keytrack.NamedKey(n))
	}
	last := keytrack.NamedKey(names[len(names)-1])

	table, err := shortcut.NewTable(config.DefaultShortcuts())
	if err != nil {
		return err
	}
	if cfg, err := loadConfig(); err == nil {
		if custom, err := shortcut.NewTable(cfg.Shortcuts); err == nil {
			table = custom
		}
	}

	combo := t.Combination()
	fmt.Fprintf(out, "Combination:  %s\n", combo)
	fmt.Fprintf(out, "Hotkey:       %t\n", t.IsHotkey())
	fmt.Fprintf(out, "Send %-8q %t\n", keytrack.DispatchToken(last), t.ShouldSendHotkey(last))
	if action, ok := table.Lookup(combo); ok {
		fmt.Fprintf(out, "Action:       %s\n", action)
	}
	return nil
}

// splitKeys accepts both "ctrl shift a" and "ctrl+shift+a".
func splitKeys(args []string) []string {
	var names []string
	for _, a := range args {
		for _, p := range strings.Split(a, "+") {
			if p = strings.TrimSpace(p); p != "" {
				names = append(names, p)
			}
		}
	}
	return names
}

func cmdHistory(sessionID string, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Journal.Path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No journal found.")
		return nil
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	if *topLimit > 0 {
		top, err := j.TopCombinations(*topLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-24s %s\n", "Combination", "Count")
		fmt.Fprintln(out, strings.Repeat("-", 32))
		for _, c := range top {
			fmt.Fprintf(out, "%-24s %d\n", c.Combination, c.Count)
		}
		return nil
	}

	if sessionID != "" {
		notes, err := j.Notifications(sessionID)
		if err != nil {
			return err
		}
		for _, n := range notes {
			fmt.Fprintf(out, "%s  ", n.Time.Format(time.RFC3339Nano))
			printNotification(out, n)
		}
		return nil
	}

	sessions, err := j.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}
	fmt.Fprintf(out, "%-36s %-20s %-8s %-8s %s\n", "Session", "Started", "Hotkeys", "Typing", "Duration")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, s := range sessions {
		duration := "open"
		if !s.Open() {
			duration = s.Ended.Sub(s.Started).Round(time.Second).String()
		}
		fmt.Fprintf(out, "%-36s %-20s %-8d %-8d %s\n",
			s.ID, s.Started.Format("2006-01-02 15:04:05"), s.Hotkeys, s.Typings, duration)
	}
	return nil
}

func cmdConfig(action string, out io.Writer) error {
	path := *configPath
	if path == "" {
		if path = config.FindConfigFile(); path == "" {
			path = config.ConfigPath()
		}
	}

	switch action {
	case "path":
		fmt.Fprintln(out, path)
		return nil
	case "init":
		_, created, err := config.LoadOrCreate(path)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(out, "Created %s\n", path)
		} else {
			fmt.Fprintf(out, "Config already exists: %s\n", path)
		}
		return nil
	case "validate":
		if _, err := config.NewLoader(path).Load(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is valid\n", path)
		return nil
	case "show":
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return toml.NewEncoder(out).Encode(cfg)
	default:
		return fmt.Errorf("unknown config action %q", action)
	}
}

func cmdSchema(out io.Writer) error {
	_, err := out.Write(script.Schema())
	return err
}
