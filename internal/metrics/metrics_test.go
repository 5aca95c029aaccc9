package metrics

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"keytrack/internal/keytrack"
	"keytrack/internal/listener"
	"keytrack/internal/logging"
)

func TestLabelsString(t *testing.T) {
	if s := (Labels{}).String(); s != "" {
		t.Errorf("empty labels = %q", s)
	}
	got := Labels{"b": "2", "a": `x"y`}.String()
	want := `{a="x\"y",b="2"}`
	if got != want {
		t.Errorf("labels = %s, want %s", got, want)
	}
}

func TestRegistryReturnsSameMetric(t *testing.T) {
	r := NewRegistry("kt")
	a := r.Counter("c", "help", Labels{"x": "1"})
	b := r.Counter("c", "help", Labels{"x": "1"})
	other := r.Counter("c", "help", Labels{"x": "2"})

	if a != b {
		t.Error("same name and labels should return the same counter")
	}
	if a == other {
		t.Error("different labels should return different counters")
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("")
	h := r.Histogram("sizes", "sizes", nil, []float64{10, 1, 5})
	for _, v := range []float64{0.5, 1, 3, 7, 100} {
		h.Observe(v)
	}
	if h.Count() != 5 || h.Sum() != 111.5 {
		t.Errorf("count=%d sum=%g", h.Count(), h.Sum())
	}

	var buf bytes.Buffer
	if err := r.WritePrometheus(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`sizes_bucket{le="1"} 2`,
		`sizes_bucket{le="5"} 3`,
		`sizes_bucket{le="10"} 4`,
		`sizes_bucket{le="+Inf"} 5`,
		`sizes_count 5`,
		`# TYPE sizes histogram`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWritePrometheusGroupsLabelledSeries(t *testing.T) {
	r := NewRegistry("keytrack")
	r.Counter("hotkeys_total", "hotkeys", Labels{"combination": "esc"}).Add(2)
	r.Counter("hotkeys_total", "hotkeys", Labels{"combination": "ctrl+c"}).Inc()
	r.Gauge("clients", "clients", nil).Set(3)

	var buf bytes.Buffer
	r.WritePrometheus(&buf)
	out := buf.String()

	if strings.Count(out, "# TYPE keytrack_hotkeys_total counter") != 1 {
		t.Errorf("header should appear once:\n%s", out)
	}
	if !strings.Contains(out, `keytrack_hotkeys_total{combination="ctrl+c"} 1`) ||
		!strings.Contains(out, `keytrack_hotkeys_total{combination="esc"} 2`) {
		t.Errorf("missing labelled series:\n%s", out)
	}
	if !strings.Contains(out, "keytrack_clients 3") {
		t.Errorf("missing gauge:\n%s", out)
	}
}

func TestListenerMetrics(t *testing.T) {
	opts := listener.DefaultOptions()
	opts.Logger = logging.Discard()
	l := listener.New(opts)

	r := NewRegistry("keytrack")
	m := NewListenerMetrics(r)
	m.Attach(l)

	for _, r := range "hi" {
		l.Press(keytrack.CharKey(r))
		l.Release(keytrack.CharKey(r))
	}
	l.Press(keytrack.NamedKey("esc"))
	l.Release(keytrack.NamedKey("esc"))
	l.Press(keytrack.NamedKey("esc"))
	l.Stop()

	if got := m.Hotkey("esc").Value(); got != 2 {
		t.Errorf("esc dispatches = %d, want 2", got)
	}
	if m.Typings.Value() != 1 || m.TypedChars.Sum() != 2 {
		t.Errorf("typing metrics: flushes=%d chars=%g", m.Typings.Value(), m.TypedChars.Sum())
	}

	srv := httptest.NewServer(r.HTTPHandler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "keytrack_key_presses 4") {
		t.Errorf("presses should be sampled on scrape:\n%s", body)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("content type = %s", resp.Header.Get("Content-Type"))
	}
}
