package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"calltriage/internal/audio"
	"calltriage/internal/config"
	"calltriage/internal/fusion"
	"calltriage/internal/ports"
	"calltriage/internal/providers/deepgram"
	"calltriage/internal/providers/openai"
	"calltriage/internal/rules"
	"calltriage/internal/server"
	"calltriage/internal/store"
	"calltriage/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Server     *server.Server
	Classifier *fusion.HybridClassifier
	// Store is nil when persistence is disabled.
	Store *store.Store
	// NewController builds the session controller owned by one connection.
	NewController func() *usecase.SessionController
}

// Close releases resources held by the graph.
func (s Services) Close() error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

// Build wires all backend dependencies for the given configuration.
func Build(cfg config.Config, eventSink ports.EventSink, logger *slog.Logger) (Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	table, err := rules.LoadTable(cfg.Rules.CriteriaPath)
	if err != nil {
		return Services{}, err
	}
	matcher, err := rules.NewMatcher(table)
	if err != nil {
		return Services{}, fmt.Errorf("compile criteria: %w", err)
	}

	llm := openai.NewClient(openai.Config{
		APIKey:       cfg.OpenAI.APIKey,
		APIBaseURL:   cfg.OpenAI.APIBaseURL,
		Model:        cfg.OpenAI.Model,
		Temperature:  cfg.OpenAI.Temperature,
		Timeout:      cfg.OpenAI.Timeout,
		MaxRetries:   cfg.OpenAI.MaxRetries,
		RetryBackoff: cfg.OpenAI.RetryBackoff,
	}, &http.Client{Timeout: cfg.OpenAI.Timeout})

	classifier, err := fusion.NewHybridClassifier(matcher, llm, logger)
	if err != nil {
		return Services{}, err
	}

	transcriber := deepgram.NewTranscriber(deepgram.Config{
		APIKey:         cfg.Deepgram.APIKey,
		APIBaseURL:     cfg.Deepgram.APIBaseURL,
		Model:          cfg.Deepgram.Model,
		SmartFormat:    cfg.Deepgram.SmartFormat,
		DetectLanguage: cfg.Deepgram.DetectLanguage,
		Timeout:        cfg.Deepgram.Timeout,
		MaxRetries:     cfg.Deepgram.MaxRetries,
		RetryBackoff:   cfg.Deepgram.RetryBackoff,
	}, &http.Client{Timeout: cfg.Deepgram.Timeout})

	decoder := audio.NewFFMPEGDecoder(cfg.Audio.FFMPEGCommand)

	var (
		callStore *store.Store
		saver     ports.CallStore
		history   server.CallHistory
	)
	if cfg.Store.Enabled() {
		callStore, err = store.Open(cfg.Store.Path)
		if err != nil {
			return Services{}, fmt.Errorf("open call store: %w", err)
		}
		saver = callStore
		history = callStore
	} else {
		logger.Warn("call persistence disabled")
	}

	sessionCfg := usecase.Config{
		Decode: ports.DecodeConfig{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		},
		DrainTimeout:        cfg.Session.DrainTimeout,
		WorkerStopGrace:     cfg.Session.WorkerStopGrace,
		PartialNoteInterval: cfg.Session.PartialNoteInterval,
		MinChunkBytes:       cfg.Session.MinChunkBytes,
	}
	newController := func() *usecase.SessionController {
		return usecase.NewSessionController(decoder, transcriber, llm, classifier, saver, eventSink, logger, sessionCfg)
	}

	srv := server.New(server.Dependencies{
		NewSession:    func() server.CallSession { return newController() },
		Classifier:    classifier,
		Notes:         llm,
		History:       history,
		DefaultLocale: cfg.Session.DefaultLocale,
		Logger:        logger,
	})

	return Services{
		Config:        cfg,
		Server:        srv,
		Classifier:    classifier,
		Store:         callStore,
		NewController: newController,
	}, nil
}
