// Package attach implements the attachment engine: the pre-sync upload
// pass, the post-merge download pass, integrity verification, and orphan
// garbage collection described for the sync document's binary blobs.
package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

// Per-cycle caps bounding how much attachment traffic one sync cycle can
// generate, grounded on the teacher's ParallelUploads/ParallelDownloads
// config knobs but applied as total-operation caps since attachment I/O
// here runs serially, not as a worker pool.
const (
	MaxUploadsPerCycle   = 10
	MaxDownloadsPerCycle = 10
	MaxGCTargetsPerCycle = 25
)

// statProbeConcurrency bounds the errgroup used to stat local attachment
// files ahead of the upload decision. Uploads themselves stay serial — only
// the filesystem probe, which is pure read-only I/O, runs concurrently.
// Grounded on the teacher's worker-pool sizing in internal/sync/worker.go,
// scaled down since this is a bounded stat fan-out, not a transfer pool.
const statProbeConcurrency = 8

// GCInterval is the minimum spacing between orphan garbage collection
// passes, gated by settings.attachments.lastCleanupAt.
const GCInterval = 24 * time.Hour

// ErrIntegrity means a downloaded attachment's SHA-256 did not match the
// recorded fileHash. The partial write is discarded and localStatus is set
// to missing before this is returned.
var ErrIntegrity = errors.New("attach: integrity check failed")

// Engine runs the attachment lifecycle against one backend and one local
// attachments root directory.
type Engine struct {
	root        string
	backend     transport.Backend
	logger      *slog.Logger
	sink        ProgressSink
	backoff     *downloadBackoff
	nowFunc     func() time.Time
	maxFileSize int64 // 0 means unlimited (File backend)
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithProgressSink overrides the default no-op ProgressSink.
func WithProgressSink(sink ProgressSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithMaxFileSize sets the backend-specific upload size cap. 0 (the
// default) means unlimited, appropriate for the File backend; WebDAV/Cloud
// callers pass a configured cap.
func WithMaxFileSize(n int64) Option {
	return func(e *Engine) { e.maxFileSize = n }
}

// WithClock overrides the engine's clock, for deterministic backoff tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.nowFunc = now }
}

// New builds an Engine rooted at root (the directory containing the
// attachments/ subtree), talking to backend.
func New(root string, backend transport.Backend, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		root:    root,
		backend: backend,
		logger:  logger,
		sink:    NopSink{},
		backoff: newDownloadBackoff(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.backoff.nowFunc = e.nowFunc
	return e
}

// owner is implemented by Task and Project, the two entity kinds that carry
// an attachments[] array the engine must walk.
type owner interface {
	GetAttachments() []model.Attachment
	SetAttachments([]model.Attachment)
}

func owners(data *model.AppData) []owner {
	result := make([]owner, 0, len(data.Tasks)+len(data.Projects))
	for _, t := range data.Tasks {
		result = append(result, t)
	}
	for _, p := range data.Projects {
		result = append(result, p)
	}
	return result
}

// resolveWithinRoot joins uri under root and rejects any result that
// escapes root after cleaning, preventing a crafted Attachment.uri from
// reading or writing outside the attachments directory.
func resolveWithinRoot(root, uri string) (string, error) {
	cleaned := filepath.Clean(uri)
	var joined string
	if filepath.IsAbs(cleaned) {
		joined = cleaned
	} else {
		joined = filepath.Join(root, cleaned)
	}
	joined = filepath.Clean(joined)

	rootClean := filepath.Clean(root)
	if joined != rootClean && !strings.HasPrefix(joined, rootClean+string(filepath.Separator)) {
		return "", fmt.Errorf("attach: uri %q escapes attachments root", uri)
	}
	return joined, nil
}

var extPattern = regexp.MustCompile(`[^a-z0-9]`)

// deriveExt extracts the key extension used in the attachments/<id><ext>
// layout: lowercased, a leading '.', up to 8 alphanumeric characters, taken
// from title first and falling back to uri.
func deriveExt(title, uri string) string {
	for _, candidate := range []string{title, uri} {
		ext := strings.ToLower(filepath.Ext(candidate))
		ext = extPattern.ReplaceAllString(ext, "")
		if ext != "" {
			if len(ext) > 8 {
				ext = ext[:8]
			}
			return "." + ext
		}
	}
	return ""
}

func attachmentKey(id, ext string) string {
	return "attachments/" + id + ext
}

// PreSyncPass walks every live file attachment across tasks and projects,
// probing local presence and uploading any blob that has bytes locally but
// no cloudKey yet, up to MaxUploadsPerCycle. It writes the updated
// attachments back onto data's owners in place and returns data itself; the
// caller holds these mutations in memory until the rest of the cycle
// succeeds.
func (e *Engine) PreSyncPass(ctx context.Context, data *model.AppData) (*model.AppData, error) {
	ownerList := owners(data)
	perOwnerAttachments := make([][]model.Attachment, len(ownerList))

	type candidate struct {
		ownerIdx int
		attIdx   int
		resolved string
	}
	var candidates []*candidate

	for oi, o := range ownerList {
		attachments := append([]model.Attachment(nil), o.GetAttachments()...)
		perOwnerAttachments[oi] = attachments

		for i := range attachments {
			a := &attachments[i]
			if a.DeletedAt != nil || a.Kind != model.AttachmentKindFile {
				continue
			}
			resolved, resolveErr := resolveWithinRoot(e.root, a.URI)
			if resolveErr != nil {
				continue
			}
			candidates = append(candidates, &candidate{ownerIdx: oi, attIdx: i, resolved: resolved})
		}
	}

	exists := make([]bool, len(candidates))
	sizes := make([]int64, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statProbeConcurrency)
	for idx, c := range candidates {
		idx, c := idx, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, statErr := os.Stat(c.resolved)
			if statErr == nil {
				exists[idx] = true
				sizes[idx] = info.Size()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	uploaded := 0
	for idx, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a := &perOwnerAttachments[c.ownerIdx][c.attIdx]
		if exists[idx] {
			a.LocalStatus = model.AttachmentAvailable
		} else {
			a.LocalStatus = model.AttachmentMissing
		}

		if a.CloudKey == "" && exists[idx] && (e.maxFileSize <= 0 || sizes[idx] <= e.maxFileSize) {
			if uploaded < MaxUploadsPerCycle {
				if err := e.upload(ctx, a, c.resolved); err != nil {
					e.logger.Warn("attachment upload failed",
						slog.String("attachment_id", a.ID), slog.String("error", err.Error()))
				} else {
					uploaded++
				}
			}
			continue
		}

		if a.CloudKey != "" {
			present, err := e.backend.Exists(ctx, a.CloudKey)
			if err == nil && !present {
				a.CloudKey = ""
			}
		}
	}

	for oi, o := range ownerList {
		o.SetAttachments(perOwnerAttachments[oi])
	}

	return data, nil
}

func (e *Engine) upload(ctx context.Context, a *model.Attachment, resolvedPath string) error {
	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		return fmt.Errorf("attach: reading %s for upload: %w", resolvedPath, err)
	}

	if a.FileHash == "" {
		a.FileHash = ComputeBytesHash(data)
	}

	ext := deriveExt(a.Title, a.URI)
	key := attachmentKey(a.ID, ext)

	mimeType := ""
	if a.MimeType != nil {
		mimeType = *a.MimeType
	}

	progress := func(transferred, total int64) {
		e.sink.OnProgress(a.ID, OperationUpload, transferred, total, StatusInProgress)
	}

	if err := e.backend.PutFile(ctx, key, mimeType, data, progress); err != nil {
		e.sink.OnProgress(a.ID, OperationUpload, 0, int64(len(data)), StatusFailed)
		return fmt.Errorf("attach: uploading %s: %w", a.ID, err)
	}

	a.CloudKey = key
	size := int64(len(data))
	a.Size = &size
	e.sink.OnProgress(a.ID, OperationUpload, size, size, StatusDone)
	return nil
}

// PostMergePass downloads any merged attachment whose cloudKey is set but
// has no local file, subject to MaxDownloadsPerCycle and the per-attachment
// backoff table. Download failures are logged and reflected in
// localStatus; they never abort the cycle.
func (e *Engine) PostMergePass(ctx context.Context, data *model.AppData) error {
	downloaded := 0

	for _, o := range owners(data) {
		attachments := append([]model.Attachment(nil), o.GetAttachments()...)
		for i := range attachments {
			a := &attachments[i]
			if a.DeletedAt != nil || a.Kind != model.AttachmentKindFile || a.CloudKey == "" {
				continue
			}
			if downloaded >= MaxDownloadsPerCycle {
				break
			}
			if e.backoff.shouldSkip(a.ID) {
				continue
			}

			resolved, resolveErr := resolveWithinRoot(e.root, a.URI)
			if resolveErr == nil {
				if _, statErr := os.Stat(resolved); statErr == nil {
					a.LocalStatus = model.AttachmentAvailable
					continue
				}
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			if err := e.download(ctx, a, resolved); err != nil {
				e.logger.Warn("attachment download failed",
					slog.String("attachment_id", a.ID), slog.String("error", err.Error()))
				continue
			}
			downloaded++
		}
		o.SetAttachments(attachments)
	}

	return nil
}

func (e *Engine) download(ctx context.Context, a *model.Attachment, resolvedPath string) error {
	progress := func(transferred, total int64) {
		e.sink.OnProgress(a.ID, OperationDownload, transferred, total, StatusInProgress)
	}

	data, err := e.backend.GetFile(ctx, a.CloudKey, progress)
	if err != nil {
		a.LocalStatus = model.AttachmentMissing
		if isNotFoundErr(err) {
			e.backoff.recordMissing(a.ID)
		} else {
			e.backoff.recordError(a.ID)
		}
		e.sink.OnProgress(a.ID, OperationDownload, 0, 0, StatusFailed)
		return fmt.Errorf("attach: downloading %s: %w", a.ID, err)
	}

	if a.FileHash != "" {
		if got := ComputeBytesHash(data); got != a.FileHash {
			a.LocalStatus = model.AttachmentMissing
			e.backoff.recordError(a.ID)
			e.sink.OnProgress(a.ID, OperationDownload, 0, int64(len(data)), StatusFailed)
			return fmt.Errorf("attach: integrity mismatch for %s: got %s want %s: %w", a.ID, got, a.FileHash, ErrIntegrity)
		}
	}

	if resolvedPath == "" {
		return fmt.Errorf("attach: cannot resolve local path for %s", a.ID)
	}
	if err := writeAtomic(resolvedPath, data); err != nil {
		return fmt.Errorf("attach: writing %s: %w", resolvedPath, err)
	}

	a.LocalStatus = model.AttachmentAvailable
	e.backoff.clear(a.ID)
	e.sink.OnProgress(a.ID, OperationDownload, int64(len(data)), int64(len(data)), StatusDone)
	return nil
}

func isNotFoundErr(err error) bool {
	return errors.Is(err, transport.ErrNotFound)
}

// OrphanGC deletes attachment blobs that are no longer referenced by any
// live entity and the local/remote copies of attachments whose owner has
// marked them deleted. It is gated to run at most once per GCInterval,
// tracked via settings.attachments.lastCleanupAt, and processes at most
// MaxGCTargetsPerCycle attachments per call. It reports whether it ran.
func (e *Engine) OrphanGC(ctx context.Context, data *model.AppData, now time.Time) (bool, error) {
	last := data.Settings.Attachments.LastCleanupAt
	if last != 0 && now.Before(last.Time().Add(GCInterval)) {
		return false, nil
	}

	live := make(map[string]bool)
	var deletionTargets []*model.Attachment
	for _, o := range owners(data) {
		attachments := o.GetAttachments()
		for i := range attachments {
			a := &attachments[i]
			if a.DeletedAt == nil {
				live[a.ID] = true
			} else {
				deletionTargets = append(deletionTargets, a)
			}
		}
	}

	dir := filepath.Join(e.root, "attachments")
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("attach: listing %s: %w", dir, err)
	}

	processed := 0
	for _, entry := range entries {
		if processed >= MaxGCTargetsPerCycle {
			break
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if entry.IsDir() {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		id = strings.TrimSuffix(id, ".partial")
		if live[id] {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("orphan attachment removal failed",
				slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		processed++
	}

	for _, a := range deletionTargets {
		if processed >= MaxGCTargetsPerCycle {
			break
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if resolved, resolveErr := resolveWithinRoot(e.root, a.URI); resolveErr == nil {
			os.Remove(resolved)
		}
		if a.CloudKey != "" {
			if err := e.backend.DeleteFile(ctx, a.CloudKey); err != nil {
				e.logger.Warn("remote attachment deletion failed",
					slog.String("attachment_id", a.ID), slog.String("error", err.Error()))
				continue
			}
		}
		processed++
	}

	data.Settings.Attachments.LastCleanupAt = model.TimestampFromTime(now)
	return true, nil
}

// writeAtomic writes data to a temp file beside path then renames it into
// place, so a torn write on crash never exposes a partial blob.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("attach: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.partial")
	if err != nil {
		return fmt.Errorf("attach: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
