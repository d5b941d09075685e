package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/wasilisafish/proposal-builder/internal/command"
	"github.com/wasilisafish/proposal-builder/internal/completeness"
	"github.com/wasilisafish/proposal-builder/internal/config"
	"github.com/wasilisafish/proposal-builder/internal/extractor"
	"github.com/wasilisafish/proposal-builder/internal/extractor/claude"
	"github.com/wasilisafish/proposal-builder/internal/extractor/gemini"
	"github.com/wasilisafish/proposal-builder/internal/extractor/openai"
	"github.com/wasilisafish/proposal-builder/internal/extractor/vertex"
	"github.com/wasilisafish/proposal-builder/internal/handler"
	"github.com/wasilisafish/proposal-builder/internal/imaging"
	"github.com/wasilisafish/proposal-builder/internal/logging"
	"github.com/wasilisafish/proposal-builder/internal/metrics"
	"github.com/wasilisafish/proposal-builder/internal/middleware"
	"github.com/wasilisafish/proposal-builder/internal/parser"
	"github.com/wasilisafish/proposal-builder/internal/raster"
	"github.com/wasilisafish/proposal-builder/internal/router"
	"github.com/wasilisafish/proposal-builder/internal/service"
	"github.com/wasilisafish/proposal-builder/internal/validator"
)

const serviceName = "proposal-builder"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(os.Stdout, serviceName, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	runner := command.NewExecRunner(logger)

	// External tools are located once; a missing tool degrades readiness
	// instead of preventing startup.
	rasterTool, err := command.Resolve(cfg.Raster.Tool)
	if err != nil {
		logger.Warn("main: PDF rasterizer not found; PDF uploads will fail", "tool", cfg.Raster.Tool, "error", err)
	}
	rasterizer := raster.NewRasterizer(rasterTool, runner, raster.NewPDFCPUInspector(), raster.Options{
		MaxDimension: cfg.Raster.MaxDimension,
		MaxPages:     cfg.Raster.MaxPages,
		Timeout:      cfg.Raster.Timeout,
		WorkDir:      cfg.Raster.WorkDir,
	}, logger)

	var heic imaging.Converter
	if cfg.Image.HEICConverter != "" {
		heic, err = newHEICConverter(cfg, runner, logger)
		if err != nil {
			heic = nil
			logger.Warn("main: HEIC conversion disabled", "converter", cfg.Image.HEICConverter, "error", err)
		}
	}
	normalizer := imaging.NewNormalizer(cfg.Image.MaxDimension, cfg.Image.MaxPixels(), heic, logger)

	registry := extractor.NewRegistry()
	registry.Register("openai", openai.Factory)
	registry.Register("claude", claude.Factory)
	registry.Register("gemini", gemini.Factory)
	registry.Register("vertex", vertex.Factory)

	clients, err := registry.Build(&cfg.Extractor)
	if err != nil {
		return fmt.Errorf("failed to build extractor clients: %w", err)
	}
	defer closeClients(clients, logger)
	client := extractor.NewFallbackClient(clients, extractor.BreakerSettings{}, m.RecordProviderCall, logger)

	respParser, err := parser.NewResponseParser(parser.Options{LowLiabilityThreshold: cfg.Notes.LowLiabilityThreshold})
	if err != nil {
		return fmt.Errorf("failed to initialize response parser: %w", err)
	}

	svc := service.NewExtractionService(service.ExtractionDeps{
		Validator:  validator.NewFileValidator(cfg.Upload.MaxFileSizeBytes()),
		Rasterizer: rasterizer,
		Images:     normalizer,
		Client:     client,
		Parser:     respParser,
		Completeness: completeness.Policy{
			Threshold:      cfg.Completeness.Threshold,
			PolicyWeight:   cfg.Completeness.PolicyWeight,
			CoverageWeight: cfg.Completeness.CoverageWeight,
		},
		Metrics:     m,
		Logger:      logger,
		MaxFiles:    cfg.Upload.MaxFiles,
		Parallelism: cfg.Raster.Parallelism,
	})

	healthH := handler.NewHealthHandler(
		handler.ReadinessCheck{Name: "rasterizer", Required: true, Check: func() error {
			if !rasterizer.Available() {
				return fmt.Errorf("%s not found", cfg.Raster.Tool)
			}
			return nil
		}},
		handler.ReadinessCheck{Name: "extractor", Required: true, Check: func() error {
			return extractorConfigured(&cfg.Extractor)
		}},
		handler.ReadinessCheck{Name: "heic_converter", Check: func() error {
			if !normalizer.HEICSupported() {
				return errors.New("HEIC uploads are sent unconverted")
			}
			return nil
		}},
	)

	r := router.Setup(router.Deps{
		Logger:         logger,
		Metrics:        m,
		Limiter:        middleware.NewClientLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Extraction:     handler.NewExtractionHandler(svc, cfg.Upload.MaxFileSizeBytes(), logger),
		Export:         handler.NewExportHandler(logger),
		Health:         healthH,
	})
	r.MaxMultipartMemory = cfg.Upload.MaxMultipartMemoryMB << 20

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("main: server starting",
			"addr", cfg.Server.Port,
			"providers", client.Providers(),
			"raster_tool", rasterizer.Available(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("main: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func newHEICConverter(cfg *config.Config, runner command.Runner, logger *slog.Logger) (imaging.Converter, error) {
	tool, err := command.Resolve(cfg.Image.HEICConverter)
	if err != nil {
		return nil, err
	}
	conv, err := imaging.NewHEICConverter(tool, runner, cfg.Raster.WorkDir, cfg.Raster.Timeout, logger)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// extractorConfigured reports whether the primary provider has credentials.
func extractorConfigured(ext *config.ExtractorConfig) error {
	primary := ext.PrimaryConfig()
	if primary.Provider == "vertex" {
		if ext.VertexProject == "" {
			return errors.New("vertex project is not set")
		}
		return nil
	}
	if primary.APIKey == "" {
		return fmt.Errorf("%s API key is not set", primary.Provider)
	}
	return nil
}

func closeClients(clients []extractor.NamedClient, logger *slog.Logger) {
	for _, c := range clients {
		closer, ok := c.Client.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			logger.Warn("main: closing extractor client", "provider", c.Name, "error", err)
		}
	}
}
