package backend

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/menta2k/rock-classifier/internal/config"
	"github.com/menta2k/rock-classifier/pkg/client"
	"github.com/menta2k/rock-classifier/pkg/gemini"
	"github.com/menta2k/rock-classifier/pkg/llamacpp"
	"github.com/menta2k/rock-classifier/pkg/ollama"
	"github.com/menta2k/rock-classifier/pkg/types"
)

// New creates the vision client selected by CLASSIFIER_BACKEND.
func New(cfg *config.Config, log *zap.Logger) (client.Classifier, error) {
	var (
		c   client.Classifier
		err error
	)

	switch cfg.Classifier.Backend {
	case config.BackendGemini:
		c, err = gemini.NewClient(gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			BaseURL:    cfg.Gemini.BaseURL,
			APIVersion: cfg.Gemini.APIVersion,
			Model:      cfg.Gemini.Model,
			Timeout:    cfg.Classifier.Timeout,
		})
	case config.BackendOllama:
		c, err = ollama.NewClient(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Classifier.Timeout)
	case config.BackendLlamaCpp:
		c, err = llamacpp.NewClient(cfg.LlamaCpp.URL, cfg.LlamaCpp.Model, cfg.Classifier.Timeout)
	default:
		return nil, types.NewConfigError("backend", fmt.Errorf("unknown backend %q", cfg.Classifier.Backend))
	}
	if err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("Vision backend ready",
			zap.String("backend", c.Name()),
			zap.String("model", c.Model()),
			zap.Duration("timeout", cfg.Classifier.Timeout))
	}
	return c, nil
}
