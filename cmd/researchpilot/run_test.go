package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/researchpilot/internal/memory"
	"github.com/mohammad-safakhou/researchpilot/internal/mission"
)

type replayRunner struct{ events []mission.Event }

func (r replayRunner) Stream(_ context.Context, _ mission.Request, sink mission.Sink) error {
	for _, ev := range r.events {
		if err := sink(ev); err != nil {
			return err
		}
	}
	return nil
}

func TestRunMissionWritesReport(t *testing.T) {
	var buf bytes.Buffer
	printer, err := newEventPrinter(&buf, "text")
	if err != nil {
		t.Fatalf("printer: %v", err)
	}
	out := filepath.Join(t.TempDir(), "report.md")
	runner := replayRunner{events: []mission.Event{
		mission.Active(mission.StagePlanner, "Planning..."),
		mission.Complete("# Findings"),
	}}

	if err := runMission(context.Background(), runner, mission.Request{Topic: "t"}, printer, out); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(data) != "# Findings" {
		t.Fatalf("unexpected report %q", data)
	}
	if !strings.Contains(buf.String(), "[Planner] Planning...") {
		t.Fatalf("expected text event line, got %q", buf.String())
	}
}

func TestRunMissionFailure(t *testing.T) {
	printer, _ := newEventPrinter(&bytes.Buffer{}, "json")
	out := filepath.Join(t.TempDir(), "report.md")
	runner := replayRunner{events: []mission.Event{mission.Failure("research topic must not be empty")}}

	err := runMission(context.Background(), runner, mission.Request{}, printer, out)
	if !errors.Is(err, errMissionFailed) {
		t.Fatalf("expected errMissionFailed, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("report must not be written on failure")
	}
}

func TestEventPrinterFormats(t *testing.T) {
	events := []mission.Event{mission.Active(mission.StageSearch, "Searching: q1"), mission.Complete("")}

	var jsonBuf bytes.Buffer
	p, _ := newEventPrinter(&jsonBuf, "json")
	for _, ev := range events {
		if err := p.print(ev); err != nil {
			t.Fatalf("json print: %v", err)
		}
	}
	lines := strings.Split(strings.TrimSpace(jsonBuf.String()), "\n")
	if len(lines) != 2 || lines[1] != `{"type":"complete","content":""}` {
		t.Fatalf("unexpected json output %q", jsonBuf.String())
	}

	var yamlBuf bytes.Buffer
	p, _ = newEventPrinter(&yamlBuf, "yaml")
	for _, ev := range events {
		if err := p.print(ev); err != nil {
			t.Fatalf("yaml print: %v", err)
		}
	}
	if err := p.close(); err != nil {
		t.Fatalf("yaml close: %v", err)
	}
	dec := yaml.NewDecoder(&yamlBuf)
	var first map[string]string
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if first["agent"] != "Search" || first["status"] != "active" {
		t.Fatalf("unexpected yaml document %v", first)
	}

	if _, err := newEventPrinter(&bytes.Buffer{}, "xml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestLoadFacts(t *testing.T) {
	m := memory.NewKeyword(zap.NewNop())
	defer m.Close()
	n, err := loadFacts(context.Background(), m, strings.NewReader("solar panels degrade\n\n  \nwind turbines fail in icing\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 || m.Len() != 2 {
		t.Fatalf("expected 2 facts, got n=%d len=%d", n, m.Len())
	}
	hits, err := m.RetrieveRelevant(context.Background(), "wind icing", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(hits) != 1 || hits[0] != "wind turbines fail in icing" {
		t.Fatalf("unexpected hits %v", hits)
	}
}
