package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"infraction-report-service/internal/config"
	"infraction-report-service/internal/db"
	httpapi "infraction-report-service/internal/http"
	"infraction-report-service/internal/logger"
	"infraction-report-service/internal/notify"
	"infraction-report-service/internal/ocr"
	"infraction-report-service/internal/repository"
	"infraction-report-service/internal/service"
	"infraction-report-service/internal/supabase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(gin.ReleaseMode)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := newOCRReader(ctx, cfg.OCR, log)

	client := supabase.NewClient(
		cfg.Supabase.URL,
		cfg.Supabase.AnonKey,
		cfg.Supabase.ServiceKey,
		supabase.WithTimeout(cfg.Supabase.RequestTimeout),
	)

	var (
		directory service.OwnerDirectory
		ledger    service.ReportLedger
	)
	switch cfg.Datastore.Backend {
	case config.BackendPostgres:
		gdb, err := db.Open(cfg.Datastore.DSN, cfg.Datastore.AutoMigrate, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(gdb); err != nil {
				log.Error().Err(err).Msg("failed to close database")
			}
		}()
		repo := repository.NewReportRepository(gdb, cfg.Supabase.LookupTimeout)
		directory, ledger = repo, repo
	default:
		directory = supabase.NewOwnerDirectory(client, cfg.Supabase.LookupTimeout)
		ledger = supabase.NewReportLedger(client)
	}
	log.Info().Str("backend", cfg.Datastore.Backend).Msg("datastore configured")

	var notifier service.Notifier
	mailer, err := notify.New(notify.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Address:  cfg.Mail.Address,
		Password: cfg.Mail.Password,
		Timeout:  cfg.Mail.Timeout,
	})
	if err != nil {
		log.Error().Err(err).Msg("email notifications disabled")
		notifier = notify.Disabled{Reason: err}
	} else {
		notifier = mailer
	}

	var platePattern *regexp.Regexp
	if cfg.OCR.PlatePattern != "" {
		platePattern, err = regexp.Compile(cfg.OCR.PlatePattern)
		if err != nil {
			return fmt.Errorf("compile plate pattern: %w", err)
		}
	}

	reportService := service.NewReportService(
		reader,
		directory,
		supabase.NewEvidenceStore(client),
		ledger,
		notifier,
		service.Options{
			Bucket:       cfg.Storage.Bucket,
			ScratchDir:   cfg.OCR.ScratchDir,
			PlatePattern: platePattern,
		},
		log,
	)

	handler := httpapi.NewHandler(reportService, log)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(handler, cfg.HTTP.CORSOrigins, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// newOCRReader never fails; an engine that cannot start leaves the reader
// permanently unavailable and reports are rejected until restart.
func newOCRReader(ctx context.Context, cfg config.OCRConfig, log zerolog.Logger) *ocr.Reader {
	switch cfg.Engine {
	case config.EngineRekognition:
		engine, err := ocr.NewRekognitionEngine(ctx, cfg.AWSRegion)
		if err != nil {
			return ocr.NewReader(nil, err, log)
		}
		return ocr.NewReader(engine, nil, log)
	default:
		engine, err := ocr.NewTesseractEngine(ctx, ocr.TesseractConfig{
			Binary:   cfg.TesseractPath,
			Language: cfg.Language,
			PSM:      cfg.PSM,
		}, log)
		if err != nil {
			return ocr.NewReader(nil, err, log)
		}
		return ocr.NewReader(engine, nil, log, ocr.WithSerializedAccess())
	}
}
