// Command layercam turns a YAML job file into a G-code program.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/chazu/layercam/pkg/gcode"
	"github.com/chazu/layercam/pkg/job"
	"github.com/chazu/layercam/pkg/logging"
	"github.com/chazu/layercam/pkg/tessellate"
	"github.com/spf13/pflag"
)

const version = "0.3.0"

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: layercam --job FILE [options]\n\n")
		fmt.Fprintf(os.Stderr, "layercam schedules depth layers for each operation of a job and\n")
		fmt.Fprintf(os.Stderr, "writes the resulting motion as G-code.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  layercam -j box.yaml -o box.nc      # write the program to a file\n")
		fmt.Fprintf(os.Stderr, "  layercam -j box.yaml -p box.dxf     # also save a DXF of the feed moves\n")
		fmt.Fprintf(os.Stderr, "  layercam -j box.yaml -p moves.json  # also save a JSON preview\n")
	}

	jobFlag := pflag.StringP("job", "j", "", "Job file to run (YAML)")
	outputFlag := pflag.StringP("output", "o", "-", "Write the program to this file, - for stdout")
	previewFlag := pflag.StringP("preview", "p", "", "Write a preview of the motion (.dxf or .json)")
	tolFlag := pflag.Float64("tolerance", 0.01, "Chord tolerance for arcs in the preview")
	verboseFlag := pflag.BoolP("verbose", "v", false, "Log scheduling and entry decisions")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}
	if *versionFlag {
		fmt.Printf("layercam version %s\n", version)
		return
	}
	if *jobFlag == "" {
		pflag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *jobFlag, *outputFlag, *previewFlag, *tolFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, jobPath, output, preview string, tol float64) error {
	j, err := job.Load(jobPath)
	if err != nil {
		return err
	}
	plan, err := job.Compile(j)
	if err != nil {
		return err
	}

	prog := &job.Progress{}
	done := make(chan struct{})
	go reportProgress(prog, done)
	results, err := (&job.Runner{Progress: prog}).Run(ctx, plan)
	close(done)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logging.Logger().Error("operation failed", "operation", r.Name, "error", r.Err)
			continue
		}
		logging.Logger().Info("operation", "name", r.Name, "tool", r.Tool, "layers", r.Layers,
			"ramps", r.Stats.Ramps, "helices", r.Stats.Helices, "plunges", r.Stats.Plunges)
	}

	if err := writeProgram(output, plan, results); err != nil {
		return err
	}
	if preview != "" {
		if err := writePreview(preview, job.Program(plan, results), tol); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d operations failed", failed, len(results))
	}
	return nil
}

func reportProgress(p *job.Progress, done <-chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			d, total := p.Snapshot()
			logging.Logger().Info("progress", "layers", d, "scheduled", total)
		}
	}
}

func writeProgram(path string, plan *job.Plan, results []job.Result) error {
	var out io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := job.Write(out, plan, results); err != nil {
		return fmt.Errorf("write program: %w", err)
	}
	return nil
}

func writePreview(path string, cmds []gcode.Command, tol float64) error {
	lines := tessellate.Tessellate(cmds, tol)
	feed, rapid := tessellate.Lengths(lines)
	b := tessellate.Bounds(lines)
	logging.Logger().Info("preview", "polylines", len(lines), "feed_length", feed, "rapid_length", rapid,
		"min", b.Min, "max", b.Max)

	if strings.EqualFold(filepath.Ext(path), ".dxf") {
		return tessellate.WriteDXF(path, lines)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	defer f.Close()
	return tessellate.WriteJSON(f, lines)
}
