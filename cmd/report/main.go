package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"alphastral/report"
	"alphastral/repository/runstore"
)

func main() {
	input := flag.String("input", "", "path to a run record JSON file")
	output := flag.String("output", "", "output path (default: <input>.md)")
	flag.Parse()

	if *input == "" {
		slog.Error("missing -input")
		os.Exit(1)
	}

	rec, err := runstore.Load(*input)
	if err != nil {
		slog.Error("load run record", "err", err)
		os.Exit(1)
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(*input, ".json") + ".md"
	}
	f, err := os.Create(out)
	if err != nil {
		slog.Error("create output", "err", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := report.Render(f, rec); err != nil {
		slog.Error("render report", "err", err)
		os.Exit(1)
	}
	slog.Info("report written", "path", out)
}
