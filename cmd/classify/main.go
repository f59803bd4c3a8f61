package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	rockclassifier "github.com/menta2k/rock-classifier"
	"github.com/menta2k/rock-classifier/internal/backend"
	"github.com/menta2k/rock-classifier/internal/config"
	"github.com/menta2k/rock-classifier/pkg/decoder"
	"github.com/menta2k/rock-classifier/pkg/encoder"
	"github.com/menta2k/rock-classifier/pkg/logger"
	"github.com/menta2k/rock-classifier/pkg/report"
	"github.com/menta2k/rock-classifier/pkg/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, report.Message(err, ""))
		os.Exit(1)
	}

	opts, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in rock.jpg|URL [-backend gemini|ollama|llamacpp] [-model name] [-url server_url] [-json out.json]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	in, jsonOut := opts.in, opts.jsonOut

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, report.Message(err, cfg.Classifier.Backend))
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	vision, err := backend.New(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, report.Message(err, cfg.Classifier.Backend))
		os.Exit(1)
	}

	decoderConfig := decoder.DefaultConfig()
	decoderConfig.SupportedFormats = cfg.App.AllowedFormats
	decoderConfig.MaxPixels = cfg.App.MaxPixels
	dec := decoder.NewWithConfig(decoderConfig)

	classifier := rockclassifier.NewWithComponents(
		dec,
		encoder.NewWithConfig(encoder.Config{Quality: cfg.Encoder.JPEGQuality, MaxDimension: cfg.Encoder.MaxDimension}),
		vision,
		log,
	)

	ctx := context.Background()
	img, err := dec.LoadImageSmart(ctx, in)
	if err != nil {
		fail(err, vision.Name())
	}
	log.Debug("Image loaded", zap.String("source", in), zap.Any("info", dec.GetImageInfo(img)))

	result, err := classifier.ClassifyImage(ctx, img)
	if err != nil {
		fail(err, vision.Name())
	}

	fmt.Println(result.Text)
	fmt.Println()
	fmt.Println(report.Disclaimer)

	if jsonOut != "" {
		if err := writeJSON(jsonOut, result); err != nil {
			log.Warn("Failed to write JSON output", zap.String("path", jsonOut), zap.Error(err))
		}
	}
}

type options struct {
	in      string
	jsonOut string
}

// parseFlags applies command-line flags on top of cfg. Unset flags keep the
// values loaded from the environment.
func parseFlags(cfg *config.Config, args []string) (*options, error) {
	var opts options
	var url, model string

	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.StringVar(&opts.in, "in", "", "input image path or URL (jpg/png)")
	fs.StringVar(&cfg.Classifier.Backend, "backend", cfg.Classifier.Backend, "backend to use: gemini, ollama or llamacpp")
	fs.StringVar(&model, "model", "", "model name (defaults to the backend's configured model)")
	fs.StringVar(&url, "url", "", "server URL for ollama/llamacpp (defaults from OLLAMA_URL / LLAMACPP_URL)")
	fs.DurationVar(&cfg.Classifier.Timeout, "timeout", cfg.Classifier.Timeout, "timeout for the backend call, 0=none")
	fs.IntVar(&cfg.Encoder.JPEGQuality, "quality", cfg.Encoder.JPEGQuality, "JPEG quality of the image sent to the backend (1-100)")
	fs.IntVar(&cfg.Encoder.MaxDimension, "maxdim", cfg.Encoder.MaxDimension, "max long side sent to the backend (px), 0=original")
	fs.StringVar(&opts.jsonOut, "json", "", "also write the result as JSON to this file")
	fs.StringVar(&cfg.Log.Level, "loglevel", cfg.Log.Level, "log level: debug, info, warn, error (defaults to LOG_LEVEL)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	applyOverrides(cfg, model, url)
	return &opts, nil
}

// applyOverrides routes -model and -url to the selected backend.
func applyOverrides(cfg *config.Config, model, url string) {
	switch cfg.Classifier.Backend {
	case config.BackendGemini:
		if model != "" {
			cfg.Gemini.Model = model
		}
		if url != "" {
			cfg.Gemini.BaseURL = url
		}
	case config.BackendOllama:
		if model != "" {
			cfg.Ollama.Model = model
		}
		if url != "" {
			cfg.Ollama.URL = url
		}
	case config.BackendLlamaCpp:
		if model != "" {
			cfg.LlamaCpp.Model = model
		}
		if url != "" {
			cfg.LlamaCpp.URL = url
		}
	}
}

func writeJSON(path string, result *types.ClassificationResult) error {
	out := struct {
		*types.ClassificationResult
		Fields *report.Fields `json:"fields,omitempty"`
	}{ClassificationResult: result}
	if fields, err := report.ParseFields(result.Text); err == nil {
		out.Fields = fields
	}

	js, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, js, 0o644)
}

func fail(err error, backend string) {
	fmt.Fprintln(os.Stderr, report.Message(err, backend))
	os.Exit(1)
}
