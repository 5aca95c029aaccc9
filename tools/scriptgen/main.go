// scriptgen generates synthetic keyboard event scripts for exercising the
// hotkey/typing classifier without manual typing.
//
// Usage:
//
//	go run ./tools/scriptgen -output session.json -words 40
//	go run ./tools/scriptgen -output session.yaml -profile hotkey-heavy
//	go run ./tools/scriptgen -list
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"keytrack/internal/script"
)

// TypingProfile defines parameters for simulating a typist.
type TypingProfile struct {
	Name                  string
	Description           string
	MedianIntervalMs      float64 // between key releases and the next press
	IntervalStdDevMs      float64
	HoldMs                float64 // how long a key stays down
	CorrectionProbability float64 // per character: mistype then backspace
	HotkeyProbability     float64 // per word: issue a shortcut afterwards
	PauseProbability      float64 // per word: thinking pause
	PauseMaxMs            float64
}

var profiles = map[string]TypingProfile{
	"normal": {
		Name:                  "Normal Typist",
		Description:           "Typical typing with occasional corrections and shortcuts",
		MedianIntervalMs:      180,
		IntervalStdDevMs:      90,
		HoldMs:                70,
		CorrectionProbability: 0.03,
		HotkeyProbability:     0.1,
		PauseProbability:      0.1,
		PauseMaxMs:            3000,
	},
	"fast-typist": {
		Name:                  "Fast Typist",
		Description:           "Quick, consistent pace with few pauses",
		MedianIntervalMs:      90,
		IntervalStdDevMs:      30,
		HoldMs:                50,
		CorrectionProbability: 0.02,
		HotkeyProbability:     0.05,
		PauseProbability:      0.03,
		PauseMaxMs:            1500,
	},
	"slow-thoughtful": {
		Name:                  "Slow Thoughtful Writer",
		Description:           "Deliberate typing with many pauses and corrections",
		MedianIntervalMs:      350,
		IntervalStdDevMs:      200,
		HoldMs:                90,
		CorrectionProbability: 0.08,
		HotkeyProbability:     0.05,
		PauseProbability:      0.3,
		PauseMaxMs:            8000,
	},
	"hotkey-heavy": {
		Name:                  "Hotkey-Heavy Editor",
		Description:           "Short bursts of text between frequent shortcuts",
		MedianIntervalMs:      150,
		IntervalStdDevMs:      60,
		HoldMs:                60,
		CorrectionProbability: 0.02,
		HotkeyProbability:     0.5,
		PauseProbability:      0.05,
		PauseMaxMs:            2000,
	},
}

// shortcuts issued by generated scripts, as modifier plus letter.
var shortcuts = []struct{ mod, key string }{
	{"ctrl_l", "s"}, {"ctrl_l", "c"}, {"ctrl_l", "v"}, {"ctrl_l", "z"},
	{"ctrl_r", "f"}, {"alt_l", "t"}, {"cmd_l", "r"},
}

var vocabulary = strings.Fields(`the quick brown fox jumps over lazy dog
	keyboard shortcut typing listener hotkey buffer flush release press
	session journal relay script replay config window editor save copy`)

// Expectation summarizes what a classifier should report for a script.
type Expectation struct {
	Text    string
	Hotkeys []string
}

type generator struct {
	rng     *rand.Rand
	profile TypingProfile
	steps   []script.Step
	exp     Expectation
	pending strings.Builder
}

func (g *generator) wait(ms float64) {
	if ms < 1 {
		ms = 1
	}
	g.steps = append(g.steps, script.Step{Op: script.OpWait, Ms: int(ms)})
}

func (g *generator) tap(step script.Step) {
	press := step
	press.Op = script.OpPress
	release := step
	release.Op = script.OpRelease

	g.steps = append(g.steps, press)
	g.wait(g.profile.HoldMs * (0.5 + g.rng.Float64()))
	g.steps = append(g.steps, release)
	g.wait(logNormalSample(g.rng, g.profile.MedianIntervalMs, g.profile.IntervalStdDevMs))
}

func (g *generator) typeChar(r rune) {
	if r == ' ' {
		g.tap(script.Step{Name: "space"})
	} else {
		g.tap(script.Step{Char: string(r)})
	}
	g.pending.WriteRune(r)
}

func (g *generator) backspace() {
	g.tap(script.Step{Name: "backspace"})
	s := []rune(g.pending.String())
	g.pending.Reset()
	if len(s) > 0 {
		g.pending.WriteString(string(s[:len(s)-1]))
	}
}

func (g *generator) hotkey() {
	sc := shortcuts[g.rng.Intn(len(shortcuts))]
	hold := g.profile.HoldMs * (0.5 + g.rng.Float64())

	g.steps = append(g.steps, script.Step{Op: script.OpPress, Name: sc.mod})
	g.wait(hold)
	g.steps = append(g.steps,
		script.Step{Op: script.OpPress, Char: sc.key},
		script.Step{Op: script.OpRelease, Char: sc.key},
	)
	g.wait(hold)
	g.steps = append(g.steps, script.Step{Op: script.OpRelease, Name: sc.mod})
	g.wait(logNormalSample(g.rng, g.profile.MedianIntervalMs, g.profile.IntervalStdDevMs))

	g.exp.Text += g.pending.String()
	g.pending.Reset()
	mod := strings.TrimSuffix(strings.TrimSuffix(sc.mod, "_l"), "_r")
	g.exp.Hotkeys = append(g.exp.Hotkeys, mod+"+"+sc.key)
}

func generate(rng *rand.Rand, profile TypingProfile, words int) ([]script.Step, Expectation) {
	g := &generator{rng: rng, profile: profile}

	for i := 0; i < words; i++ {
		if i > 0 {
			g.typeChar(' ')
		}
		for _, r := range vocabulary[rng.Intn(len(vocabulary))] {
			if rng.Float64() < profile.CorrectionProbability {
				g.typeChar('a' + rune(rng.Intn(26)))
				g.backspace()
			}
			g.typeChar(r)
		}
		if rng.Float64() < profile.HotkeyProbability {
			g.hotkey()
		}
		if rng.Float64() < profile.PauseProbability {
			g.wait(profile.MedianIntervalMs + rng.Float64()*profile.PauseMaxMs)
		}
	}
	g.exp.Text += g.pending.String()
	return g.steps, g.exp
}

// logNormalSample draws from a log-normal distribution with the given
// median.
func logNormalSample(rng *rand.Rand, median, stdDev float64) float64 {
	mu := math.Log(median)
	sigma := math.Log(1 + stdDev/median)
	if sigma < 0.1 {
		sigma = 0.1
	}
	return math.Exp(mu + sigma*rng.NormFloat64())
}

func main() {
	var (
		outputPath   = flag.String("output", "-", "Output file path, - for stdout")
		wordCount    = flag.Int("words", 20, "Number of words to type")
		profileName  = flag.String("profile", "normal", "Typing profile to use")
		formatName   = flag.String("format", "", "Output format: json, jsonl or yaml (default: by extension)")
		seed         = flag.Int64("seed", 0, "Random seed; 0 = use current time")
		listProfiles = flag.Bool("list", false, "List available profiles")
	)
	flag.Parse()

	if *listProfiles {
		names := make([]string, 0, len(profiles))
		for name := range profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("Available profiles:")
		for _, name := range names {
			fmt.Printf("  %-20s %s\n", name, profiles[name].Description)
		}
		return
	}

	profile, ok := profiles[*profileName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown profile: %s\n", *profileName)
		fmt.Fprintln(os.Stderr, "Use -list to see available profiles")
		os.Exit(1)
	}

	format := script.FormatFromPath(*outputPath)
	if *formatName != "" {
		f, err := script.ParseFormat(*formatName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		format = f
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))
	steps, exp := generate(rng, profile, *wordCount)

	var out io.Writer = os.Stdout
	if *outputPath != "-" {
		f, err := os.Create(*outputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := script.Encode(out, steps, format); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing script: %v\n", err)
		os.Exit(1)
	}

	printStats(os.Stderr, profile, *seed, steps, exp)
}

func printStats(w io.Writer, profile TypingProfile, seed int64, steps []script.Step, exp Expectation) {
	var total time.Duration
	presses := 0
	for _, s := range steps {
		switch s.Op {
		case script.OpWait:
			total += s.Duration()
		case script.OpPress:
			presses++
		}
	}

	fmt.Fprintf(w, "Profile:        %s (seed %d)\n", profile.Name, seed)
	fmt.Fprintf(w, "Steps:          %d\n", len(steps))
	fmt.Fprintf(w, "Key presses:    %d\n", presses)
	fmt.Fprintf(w, "Duration:       %s\n", total.Round(time.Millisecond))
	fmt.Fprintf(w, "Expected text:  %d chars\n", len([]rune(exp.Text)))
	fmt.Fprintf(w, "Expected hotkeys: %d\n", len(exp.Hotkeys))
}
