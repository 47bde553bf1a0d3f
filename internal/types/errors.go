package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL   = errors.New("invalid URL")
	ErrTaskNotFound = errors.New("task not found")
	ErrNoEmbedding  = errors.New("embedding response contained no vector")
)

// InvalidSeedError is returned before any network activity when the seed
// URL lacks a scheme or host. It aborts the whole ingestion.
type InvalidSeedError struct {
	URL    string
	Reason string
}

func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed URL %q: %s", e.URL, e.Reason)
}

func (e *InvalidSeedError) Unwrap() error { return ErrInvalidURL }

// RendererInitError means the render session could not be started. Fatal.
type RendererInitError struct {
	Kind string
	Err  error
}

func (e *RendererInitError) Error() string {
	return fmt.Sprintf("renderer %s init: %v", e.Kind, e.Err)
}

func (e *RendererInitError) Unwrap() error { return e.Err }

// RenderTimeoutError is returned alongside whatever markup was available when
// the page-load deadline passed. Callers proceed with the partial page.
type RenderTimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *RenderTimeoutError) Error() string {
	return fmt.Sprintf("render timeout for %s after %s: %v", e.URL, e.Timeout, e.Err)
}

func (e *RenderTimeoutError) Unwrap() error { return e.Err }

// RenderError is a per-URL render failure. The crawl continues without it.
type RenderError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *RenderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("render error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("render error for %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IndexError wraps embedding and vector store failures. These are always
// propagated to the caller.
type IndexError struct {
	Stage     string
	Namespace string
	Err       error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index error at %s (namespace=%q): %v", e.Stage, e.Namespace, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur in a vector store backend.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in one ingestion stage.
type PipelineError struct {
	Stage string
	URL   string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
