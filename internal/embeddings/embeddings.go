// Package embeddings wraps a fixed-384-dimension local sentence-embedding
// model (spec §4.3) behind a minimal interface, with request-level
// deduplication for concurrent identical batches.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	fastembed "github.com/anush008/fastembed-go"
	"golang.org/x/sync/singleflight"

	"webmemcore/internal/webtypes"
)

var (
	ErrEmptyInput      = errors.New("embeddings: input must not be empty")
	ErrEmbeddingFailed = errors.New("embeddings: generation failed")
	ErrInvalidConfig   = errors.New("embeddings: invalid configuration")
)

// Encoder produces fixed-dimension float32 vectors for document chunks and
// queries. Implementations must guarantee a constant Dimension() across the
// lifetime of a deployment; the Vector/Relational Store's virtual index is
// declared with that fixed width.
type Encoder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Close() error
}

// modelDimensions maps supported fastembed model names to their output
// width; only 384-dim models satisfy the store's fixed schema.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: webtypes.EmbeddingDim,
	fastembed.BGESmallEN:    webtypes.EmbeddingDim,
	fastembed.AllMiniLML6V2: webtypes.EmbeddingDim,
}

var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// Config selects the model and its local cache location.
type Config struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedEncoder is the Encoder backed by github.com/anush008/fastembed-go
// running a local ONNX model; no embedding call leaves the process.
type FastEmbedEncoder struct {
	model     *fastembed.FlagEmbedding
	dimension int
	group     singleflight.Group
}

// NewFastEmbedEncoder loads the configured model, rejecting any model whose
// dimension is not the fixed 384 the store requires.
func NewFastEmbedEncoder(cfg Config) (*FastEmbedEncoder, error) {
	model, ok := modelMapping[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
	}
	dim, known := modelDimensions[model]
	if !known {
		return nil, fmt.Errorf("%w: model %q is not a supported fixed-384-dim model", ErrInvalidConfig, cfg.Model)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "embedding_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing embedding model: %w", err)
	}

	return &FastEmbedEncoder{model: flag, dimension: dim}, nil
}

// EmbedBatch encodes document chunks. Identical concurrent batches
// (same joined text) share one in-flight model invocation via
// singleflight; a call made after that invocation has returned runs the
// model again.
func (e *FastEmbedEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := batchKey(texts)
	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		vecs, err := e.model.PassageEmbed(texts, 256)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		return vecs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([][]float32), nil
}

// EmbedQuery encodes a single query vector; the result is never persisted.
func (e *FastEmbedEncoder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec, err := e.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vec, nil
}

func (e *FastEmbedEncoder) Dimension() int { return e.dimension }

func (e *FastEmbedEncoder) Close() error {
	if e.model != nil {
		return e.model.Destroy()
	}
	return nil
}

func batchKey(texts []string) string {
	h := 0
	for _, t := range texts {
		for _, r := range t {
			h = h*31 + int(r)
		}
		h = h*31 + len(t)
	}
	return fmt.Sprintf("%d:%d", len(texts), h)
}
