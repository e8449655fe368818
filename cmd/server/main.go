package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Shoyeb45/ai-interview/internal/agent"
	"github.com/Shoyeb45/ai-interview/internal/config"
	"github.com/Shoyeb45/ai-interview/internal/events"
	"github.com/Shoyeb45/ai-interview/internal/httpserver"
	"github.com/Shoyeb45/ai-interview/internal/llm"
	"github.com/Shoyeb45/ai-interview/internal/rtc"
	"github.com/Shoyeb45/ai-interview/internal/store"
	"github.com/Shoyeb45/ai-interview/internal/stt"
	"github.com/Shoyeb45/ai-interview/internal/tts"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rdb, err := store.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	cancel()
	if err != nil {
		logger.Fatal("redis connect failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	var synth agent.Synthesizer
	switch cfg.TTSProvider {
	case "elevenlabs":
		synth = tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, logger)
	default:
		synth = tts.NewDeepgramClient(cfg.DeepgramAPIKey, cfg.DeepgramModel, logger)
	}

	handler := &rtc.Handler{
		Sessions:    store.NewSessions(rdb),
		Events:      events.NewEmitter(rdb, logger),
		Transcriber: stt.NewWhisperClient(cfg.WhisperURL, 2, logger),
		Responder:   llm.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel),
		Synth:       synth,

		ICEServersJSON: cfg.ICEServersJSON,
		AuthToken:      cfg.AuthToken,
		Audio:          cfg.Audio,
		Log:            logger,
	}

	e := httpserver.New(handler)
	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.HTTPAddress))
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}
}
