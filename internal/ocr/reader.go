package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var ErrUnavailable = errors.New("ocr engine unavailable")

// Engine extracts text lines from an image file, in detection order.
type Engine interface {
	Name() string
	ReadText(ctx context.Context, imagePath string) ([]string, error)
}

// Reader is the process-wide OCR handle. It is built once at startup; if the
// engine failed to initialize it stays unavailable for the process lifetime.
type Reader struct {
	engine    Engine
	initErr   error
	serialize bool
	mu        sync.Mutex
	log       zerolog.Logger
}

type ReaderOption func(*Reader)

// WithSerializedAccess routes every call through a single mutex, for engines
// that are not safe for concurrent inference.
func WithSerializedAccess() ReaderOption {
	return func(r *Reader) {
		r.serialize = true
	}
}

func NewReader(engine Engine, initErr error, log zerolog.Logger, opts ...ReaderOption) *Reader {
	if engine == nil && initErr == nil {
		initErr = errors.New("no engine configured")
	}
	r := &Reader{
		engine:  engine,
		initErr: initErr,
		log:     log,
	}
	for _, opt := range opts {
		opt(r)
	}
	if initErr != nil {
		log.Error().Err(initErr).Msg("ocr engine failed to initialize, reports will be rejected")
	} else {
		log.Info().Str("engine", engine.Name()).Bool("serialized", r.serialize).Msg("ocr engine ready")
	}
	return r
}

// Available returns ErrUnavailable (wrapping the init failure) when the engine never came up.
func (r *Reader) Available() error {
	if r.initErr != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, r.initErr)
	}
	return nil
}

func (r *Reader) ReadText(ctx context.Context, imagePath string) ([]string, error) {
	if err := r.Available(); err != nil {
		return nil, err
	}
	if r.serialize {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	texts, err := r.engine.ReadText(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.engine.Name(), err)
	}
	return texts, nil
}
