package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"infraction-report-service/internal/domain/report"
	"infraction-report-service/internal/utils"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrOCRUnavailable = errors.New("ocr reader unavailable")
	ErrEvidenceUpload = errors.New("evidence upload failed")
	ErrUnexpected     = errors.New("unexpected failure")
)

// ReportError ties a pipeline failure to the request ID its log lines carry.
type ReportError struct {
	RequestID string
	Err       error
}

func (e *ReportError) Error() string { return e.Err.Error() }

func (e *ReportError) Unwrap() error { return e.Err }

const (
	msgNotified     = "Reporte enviado con éxito a %s."
	msgNotifyFailed = "Placa encontrada, pero falló el envío del correo."
	msgNoOwner      = "Reporte guardado con éxito. No se encontró propietario asociado para notificar."
	defaultImageExt = ".jpg"
	descriptionPeek = 50
)

type TextReader interface {
	Available() error
	ReadText(ctx context.Context, imagePath string) ([]string, error)
}

type OwnerDirectory interface {
	FindByPlate(ctx context.Context, plate string) ([]report.OwnerRecord, error)
}

type EvidenceStore interface {
	Upload(ctx context.Context, content []byte, objectName, bucket string) (string, error)
}

type ReportLedger interface {
	Insert(ctx context.Context, r report.InfractionReport) error
	ListAll(ctx context.Context) ([]report.ReportWithOwner, error)
}

type Notifier interface {
	Send(ctx context.Context, toEmail, plate, description string) error
}

type Options struct {
	Bucket     string
	ScratchDir string
	// PlatePattern only adds a warning log on mismatch; plates are never rejected.
	PlatePattern *regexp.Regexp
	Now          func() time.Time
	NewID        func() string
}

type ReportService struct {
	reader    TextReader
	directory OwnerDirectory
	evidence  EvidenceStore
	ledger    ReportLedger
	notifier  Notifier
	opts      Options
	log       zerolog.Logger
}

func NewReportService(
	reader TextReader,
	directory OwnerDirectory,
	evidence EvidenceStore,
	ledger ReportLedger,
	notifier Notifier,
	opts Options,
	log zerolog.Logger,
) *ReportService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	return &ReportService{
		reader:    reader,
		directory: directory,
		evidence:  evidence,
		ledger:    ledger,
		notifier:  notifier,
		opts:      opts,
		log:       log,
	}
}

// ProcessReport runs OCR, owner lookup, evidence upload, persistence and
// notification for one submission. Only OCR unavailability, evidence upload
// failure, invalid input and unexpected faults are returned as errors;
// degraded outcomes are reported through the result status. Returned errors
// are *ReportError values.
func (s *ReportService) ProcessReport(ctx context.Context, sub report.Submission) (result *report.ProcessResult, err error) {
	requestID := s.opts.NewID()
	log := s.log.With().Str("request_id", requestID).Logger()

	defer func() {
		if err != nil {
			err = &ReportError{RequestID: requestID, Err: err}
		}
	}()

	if availErr := s.reader.Available(); availErr != nil {
		log.Error().Err(availErr).Msg("rejecting report, ocr reader unavailable")
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, availErr)
	}
	if len(sub.PlatePhoto.Content) == 0 {
		return nil, fmt.Errorf("%w: plate photo is empty", ErrInvalidInput)
	}
	if len(sub.InfractionPhoto.Content) == 0 {
		return nil, fmt.Errorf("%w: infraction photo is empty", ErrInvalidInput)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("report pipeline panicked")
			result = nil
			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
		}
	}()

	log.Info().
		Str("description", peek(sub.Description, descriptionPeek)).
		Int("plate_photo_bytes", len(sub.PlatePhoto.Content)).
		Int("infraction_photo_bytes", len(sub.InfractionPhoto.Content)).
		Msg("report received")

	scratchPath, err := s.writeScratch(sub.PlatePhoto)
	if err != nil {
		log.Error().Err(err).Msg("failed to write scratch plate image")
		return nil, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	defer s.removeScratch(log, scratchPath)

	texts, err := s.reader.ReadText(ctx, scratchPath)
	if err != nil {
		log.Error().Err(err).Msg("ocr failed")
		return nil, fmt.Errorf("%w: ocr: %v", ErrUnexpected, err)
	}

	plate := s.plateFromDetections(log, texts)
	log = log.With().Str("plate", plate).Logger()

	owner := s.resolveOwner(ctx, log, plate)

	timestamp := s.opts.Now().Unix()
	plateObject := EvidenceObjectName(plate, timestamp, requestID, report.RolePlate)
	infractionObject := EvidenceObjectName(plate, timestamp, requestID, report.RoleInfraction)

	plateURL, plateErr := s.evidence.Upload(ctx, sub.PlatePhoto.Content, plateObject, s.opts.Bucket)
	if plateErr != nil {
		log.Error().Err(plateErr).Str("object_name", plateObject).Msg("plate evidence upload failed")
	}
	infractionURL, infractionErr := s.evidence.Upload(ctx, sub.InfractionPhoto.Content, infractionObject, s.opts.Bucket)
	if infractionErr != nil {
		log.Error().Err(infractionErr).Str("object_name", infractionObject).Msg("infraction evidence upload failed")
	}
	if plateErr != nil || infractionErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvidenceUpload, errors.Join(plateErr, infractionErr))
	}
	log.Info().
		Str("plate_object", plateObject).
		Str("infraction_object", infractionObject).
		Msg("evidence uploaded")

	rep := report.InfractionReport{
		DetectedPlate:         plate,
		Description:           sub.Description,
		PlateEvidenceURL:      plateURL,
		InfractionEvidenceURL: infractionURL,
		OCRCandidates:         texts,
	}
	if owner != nil {
		rep.OwnerID = owner.OwnerID
	}

	result = &report.ProcessResult{
		RequestID:     requestID,
		DetectedPlate: plate,
		OwnerFound:    owner != nil,
	}

	if err := s.ledger.Insert(ctx, rep); err != nil {
		log.Warn().Err(err).Msg("failed to persist report, evidence is stored")
	} else {
		result.ReportSaved = true
		log.Info().Msg("report persisted")
	}

	if owner == nil {
		result.Status = report.StatusWarning
		result.Message = msgNoOwner
		return result, nil
	}

	if err := s.notifier.Send(ctx, owner.Email, plate, sub.Description); err != nil {
		log.Error().Err(err).Str("email", owner.Email).Msg("owner notification failed")
		result.Status = report.StatusError
		result.Message = msgNotifyFailed
		return result, nil
	}

	log.Info().Str("email", owner.Email).Msg("owner notified")
	result.Status = report.StatusSuccess
	result.Message = fmt.Sprintf(msgNotified, owner.Email)
	return result, nil
}

// Ready reports whether the OCR reader came up at startup.
func (s *ReportService) Ready() error {
	return s.reader.Available()
}

// ListReports returns every stored report, newest first.
func (s *ReportService) ListReports(ctx context.Context) ([]report.ReportWithOwner, error) {
	reports, err := s.ledger.ListAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list reports")
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

func (s *ReportService) plateFromDetections(log zerolog.Logger, texts []string) string {
	if len(texts) == 0 {
		log.Info().Msg("no text detected in plate photo")
		return report.UndetectedPlate
	}
	if len(texts) > 1 {
		log.Debug().Strs("discarded", texts[1:]).Msg("using first ocr detection only")
	}

	plate := utils.NormalizePlate(texts[0])
	if plate == "" {
		log.Info().Str("raw_text", texts[0]).Msg("ocr text empty after normalization")
		return report.UndetectedPlate
	}
	if !utils.MatchesPlateGrammar(plate, s.opts.PlatePattern) {
		log.Warn().Str("plate", plate).Msg("plate_grammar_mismatch")
	}
	log.Info().Str("raw_text", texts[0]).Str("plate", plate).Msg("plate detected")
	return plate
}

// resolveOwner returns nil for the sentinel plate, unknown plates and lookup errors.
func (s *ReportService) resolveOwner(ctx context.Context, log zerolog.Logger, plate string) *report.OwnerRecord {
	if plate == report.UndetectedPlate {
		return nil
	}

	owners, err := s.directory.FindByPlate(ctx, plate)
	if err != nil {
		log.Error().Err(err).Msg("owner lookup failed")
		return nil
	}
	if len(owners) == 0 {
		log.Info().Msg("owner not found")
		return nil
	}

	owner := owners[0]
	if owner.OwnerID == nil || owner.Email == "" {
		log.Warn().Msg("owner record incomplete, skipping notification")
		return nil
	}
	log.Info().
		Int64("owner_id", *owner.OwnerID).
		Str("owner_name", owner.FullName).
		Str("email", owner.Email).
		Msg("owner found")
	return &owner
}

func (s *ReportService) writeScratch(img report.Image) (string, error) {
	if err := os.MkdirAll(s.opts.ScratchDir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	f, err := os.CreateTemp(s.opts.ScratchDir, "plate-*"+imageExt(img.Filename))
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(img.Content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	return path, nil
}

func (s *ReportService) removeScratch(log zerolog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Str("path", path).Msg("failed to remove scratch plate image")
	}
}

// EvidenceObjectName builds "<plate>_<unix>_<requestID>_<role>.jpg". The
// request ID keeps names unique when the same plate is reported twice in
// one second.
func EvidenceObjectName(plate string, unix int64, requestID, role string) string {
	return fmt.Sprintf("%s_%d_%s_%s.jpg", plate, unix, requestID, role)
}

func imageExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp", ".gif":
		return ext
	default:
		return defaultImageExt
	}
}

func peek(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
