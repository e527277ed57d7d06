// Command analyse is the CLI embedding surface for the telemetry analysis
// core (§6): it decodes one capture file, runs the full C1→C8 pipeline, and
// prints the resulting CoachingPayload as JSON.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/telemetry-core/internal/analyser"
	"github.com/banshee-data/telemetry-core/internal/corner"
	"github.com/banshee-data/telemetry-core/internal/errs"
	"github.com/banshee-data/telemetry-core/internal/fsutil"
	"github.com/banshee-data/telemetry-core/internal/trackstore"
	"github.com/banshee-data/telemetry-core/internal/version"
)

// Config holds configuration for one analyse invocation, built from flags
// (mirrors cmd/tools/pcap-analyse's Config-from-flags shape).
type Config struct {
	CapturePath string
	StorePath   string
	Preset      string
	ShowVersion bool
}

func parseFlags() Config {
	cfg := Config{}
	flag.StringVar(&cfg.CapturePath, "capture", "", "Path to a capture file (required)")
	flag.StringVar(&cfg.StorePath, "store", "trackstore.db", "Path to the track store SQLite database")
	flag.StringVar(&cfg.Preset, "preset", "", "Override the corner-detection preset (road, street, oval)")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -capture FILE [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Decodes a capture file, segments and compares its laps, and prints a\n")
		fmt.Fprintf(os.Stderr, "coaching payload as JSON.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("analyse %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		os.Exit(0)
	}

	if cfg.CapturePath == "" {
		fmt.Fprintln(os.Stderr, "Error: -capture is required")
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(cfg, fsutil.OSFileSystem{}, os.Stdout))
}

// run performs one analyse invocation against fs, so tests can substitute
// an fsutil.MemoryFileSystem instead of touching the real disk.
func run(cfg Config, fs fsutil.FileSystem, w io.Writer) int {
	buf, err := fs.ReadFile(cfg.CapturePath)
	if err != nil {
		log.Printf("read capture %q: %v", cfg.CapturePath, err)
		return exitCodeFor(errs.Wrap(errs.MalformedCapture, err, "read %q", cfg.CapturePath))
	}

	var store *trackstore.Store
	if cfg.StorePath != "" {
		store, err = trackstore.Open(cfg.StorePath)
		if err != nil {
			log.Printf("track store unavailable, continuing without corner naming: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	opts := analyser.Options{Store: store}
	if cfg.Preset != "" {
		t := corner.TrackType(cfg.Preset)
		opts.Preset = &t
	}

	payload, err := analyser.Analyse(buf, opts)
	if err != nil {
		log.Printf("analysis failed: %v", err)
		return exitCodeFor(err)
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		log.Fatalf("marshal coaching payload: %v", err)
	}
	fmt.Fprintln(w, string(out))
	return 0
}

// exitCodeFor maps an errs.Kind to the process exit codes named in §6.
func exitCodeFor(err error) int {
	var e *errs.Error
	if !errors.As(err, &e) {
		return 1
	}
	switch e.Kind {
	case errs.MalformedCapture:
		return 2
	case errs.NoUsableLap:
		return 3
	case errs.TrackStoreUnavailable:
		return 4
	default:
		return 1
	}
}
