// Package retrieval drives the two download protocols: single-file download
// and whole-day archive download with content type verification.
package retrieval

import (
	"context"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/jonathan/resume-vault/internal/observability"
	"github.com/jonathan/resume-vault/internal/store"
	"github.com/jonathan/resume-vault/internal/types"
	"go.uber.org/zap"
)

// maxDisguisedBody bounds how much of a non-archive body is decoded as text.
const maxDisguisedBody = 64 << 10

// Source opens download streams. *store.Client implements it.
type Source interface {
	DownloadOne(ctx context.Context, s types.Scope, name string, ext types.Extension) (*store.Download, error)
	DownloadArchive(ctx context.Context, s types.Scope, date string) (*store.Download, error)
}

// Result describes one saved file.
type Result struct {
	Filename string
	Path     string
	Bytes    int64
}

// Orchestrator turns download streams into saved local files.
type Orchestrator struct {
	src     Source
	saver   Saver
	logger  *zap.Logger
	metrics *observability.StoreMetrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records saved bytes and disguised failures.
func WithMetrics(m *observability.StoreMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator.
func New(src Source, saver Saver, opts ...Option) *Orchestrator {
	o := &Orchestrator{src: src, saver: saver, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DownloadOne saves name+ext. Any content type is accepted.
func (o *Orchestrator) DownloadOne(ctx context.Context, s types.Scope, name string, ext types.Extension) (*Result, error) {
	dl, err := o.src.DownloadOne(ctx, s, name, ext)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dl.Close() }()

	return o.save(ctx, "single", dl)
}

// DownloadArchive fetches the archive for date and saves it as
// {date}-resumes.zip. A 2xx response that does not declare application/zip is
// a disguised failure: its body becomes the error message and nothing is saved.
// Failures are never retried.
func (o *Orchestrator) DownloadArchive(ctx context.Context, s types.Scope, date string) (*Result, error) {
	start := time.Now()
	dl, err := o.src.DownloadArchive(ctx, s, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dl.Close() }()

	if !IsArchive(dl.ContentType) {
		text, readErr := io.ReadAll(io.LimitReader(dl.Body, maxDisguisedBody))
		msg := string(text)
		if readErr != nil || msg == "" {
			msg = fmt.Sprintf("Download failed: expected %s, got %q", types.ArchiveMediaType, dl.ContentType)
		}
		o.metrics.RecordRequest("archive.verify", observability.OutcomeDisguised, time.Since(start))
		o.logger.Warn("archive response is not a zip",
			zap.String("scope", s.String()),
			zap.String("date", date),
			zap.String("content_type", dl.ContentType))
		return nil, &store.DisguisedError{Op: "archive", ContentType: dl.ContentType, Message: msg}
	}

	return o.save(ctx, "archive", dl)
}

func (o *Orchestrator) save(ctx context.Context, kind string, dl *store.Download) (*Result, error) {
	path, n, err := o.saver.Save(ctx, dl.Filename, dl.Body)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", dl.Filename, err)
	}
	o.metrics.RecordSaved(kind, n)
	o.logger.Debug("saved download", zap.String("file", path), zap.Int64("bytes", n))
	return &Result{Filename: dl.Filename, Path: path, Bytes: n}, nil
}

// IsArchive reports whether a declared content type is exactly the archive
// media type. The match is case-insensitive and ignores parameters, so
// "application/zip; charset=binary" passes and "application/x-zip" does not.
func IsArchive(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == types.ArchiveMediaType
}

// DateResult is the outcome of one date in DownloadArchives.
type DateResult struct {
	Date   string
	Result *Result
	Err    error
}

// DownloadArchives fetches several dates one after another; requests for one
// scope never overlap. Each date is independent: one failure does not stop the
// others.
func (o *Orchestrator) DownloadArchives(ctx context.Context, s types.Scope, dates []string) []DateResult {
	out := make([]DateResult, 0, len(dates))
	for _, date := range dates {
		res, err := o.DownloadArchive(ctx, s, date)
		out = append(out, DateResult{Date: date, Result: res, Err: err})
	}
	return out
}
