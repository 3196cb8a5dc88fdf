package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/researchpilot/internal/mission"
)

const defaultReportPath = "Final_Research_Report.md"

// eventPrinter writes events in one of the supported formats.
type eventPrinter struct {
	w      io.Writer
	format string
	json   *json.Encoder
	yaml   *yaml.Encoder
}

func newEventPrinter(w io.Writer, format string) (*eventPrinter, error) {
	p := &eventPrinter{w: w, format: format}
	switch format {
	case "text", "":
		p.format = "text"
	case "json":
		p.json = json.NewEncoder(w)
	case "yaml":
		p.yaml = yaml.NewEncoder(w)
		p.yaml.SetIndent(2)
	default:
		return nil, fmt.Errorf("unsupported format %q (text|json|yaml)", format)
	}
	return p, nil
}

func (p *eventPrinter) print(ev mission.Event) error {
	switch p.format {
	case "json":
		return p.json.Encode(ev)
	case "yaml":
		return p.yaml.Encode(ev.Wire())
	default:
		_, err := fmt.Fprintln(p.w, ev.String())
		return err
	}
}

func (p *eventPrinter) close() error {
	if p.yaml != nil {
		return p.yaml.Close()
	}
	return nil
}

type missionRunner interface {
	Stream(ctx context.Context, req mission.Request, sink mission.Sink) error
}

// errMissionFailed marks a mission that ended with an error event.
var errMissionFailed = errors.New("mission failed")

// runMission streams one mission through the printer and writes the report to
// out when it completes.
func runMission(ctx context.Context, runner missionRunner, req mission.Request, printer *eventPrinter, out string) error {
	var terminal mission.Event
	err := runner.Stream(ctx, req, func(ev mission.Event) error {
		if ev.Terminal() {
			terminal = ev
		}
		return printer.print(ev)
	})
	if err != nil {
		return err
	}
	switch terminal.Kind {
	case mission.KindComplete:
		if out == "" {
			return nil
		}
		return os.WriteFile(out, []byte(terminal.Content), 0o644)
	case mission.KindError:
		return fmt.Errorf("%w: %s", errMissionFailed, terminal.Msg)
	}
	return errors.New("mission ended without a terminal event")
}

func runCMD(cfgPath *string) *cobra.Command {
	var (
		topic  string
		file   string
		out    string
		format string
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Run one research mission locally and write the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := newEventPrinter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			defer printer.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			err = runMission(ctx, a.orch, mission.Request{Topic: topic, FilePath: file}, printer, out)
			if err == nil && out != "" {
				a.logger.Info("report written", zap.String("path", out))
			}
			return err
		},
	}
	run.Flags().StringVarP(&topic, "topic", "t", "", "research topic")
	run.Flags().StringVarP(&file, "file", "f", "", "optional attachment (pdf, image, html, text)")
	run.Flags().StringVarP(&out, "out", "o", defaultReportPath, "report output path (empty to skip)")
	run.Flags().StringVar(&format, "format", "text", "event output format: text, json or yaml")
	_ = run.MarkFlagRequired("topic")
	return run
}
