package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/scanner"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/config"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/jobs"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/storage"
)

const scanJobType = "document.scan"

type scanStatusStore interface {
	UpdateScanStatus(ctx context.Context, id string, version int, status models.ScanStatus, quarantined bool) error
}

type eventPublisher interface {
	Publish(subject string, payload interface{}) error
}

// ScanJob identifies the document revision a scan verdict applies to. The
// version pins the verdict: a replace that lands while the scan is in flight
// bumps the row version and the stale verdict is dropped on write.
type ScanJob struct {
	DocumentID string `json:"documentId"`
	Version    int    `json:"version"`
	Link       string `json:"link"`
	Title      string `json:"title"`
}

// ScanService runs uploaded content through the antivirus pipeline. Content
// enters quarantined and is only released by an explicit clean verdict;
// scanner failures leave the hold in place.
type ScanService struct {
	docs    scanStatusStore
	blobs   storage.BlobStore
	scanner scanner.Scanner
	events  eventPublisher
	metrics *MetricsService
	queue   *jobs.Queue
	cfg     config.ScannerConfig
	logger  *zap.Logger
}

// NewScanService constructs the service and its worker queue.
func NewScanService(
	docs scanStatusStore,
	blobs storage.BlobStore,
	av scanner.Scanner,
	events eventPublisher,
	metrics *MetricsService,
	cfg config.ScannerConfig,
	logger *zap.Logger,
) *ScanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ScanService{
		docs:    docs,
		blobs:   blobs,
		scanner: av,
		events:  events,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
	}
	s.queue = jobs.NewQueue("document-scan", s.handleJob, jobs.QueueConfig{
		Workers:     cfg.Concurrency,
		MaxRetries:  cfg.MaxRetries,
		OnExhausted: s.failExhausted,
		Logger:      logger,
	})
	return s
}

// failExhausted records a terminal failed verdict once the queue gives up on
// a job, so no document is left pending and quarantined forever.
func (s *ScanService) failExhausted(job jobs.Job, cause error) {
	payload, ok := job.Payload.(ScanJob)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.docs.UpdateScanStatus(ctx, payload.DocumentID, payload.Version, models.ScanFailed, true); err != nil {
		s.logger.Error("failed to record exhausted scan",
			zap.String("document_id", payload.DocumentID),
			zap.Int("version", payload.Version),
			zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.RecordScanVerdict(string(models.ScanFailed))
	}
	s.logger.Warn("scan abandoned after retries, content stays quarantined",
		zap.String("document_id", payload.DocumentID),
		zap.Int("version", payload.Version),
		zap.Error(cause))
	s.publishVerdict(payload, models.ScanFailed, "")
}

// Start launches the scan workers.
func (s *ScanService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *ScanService) Stop() {
	s.queue.Stop()
}

// Enabled reports whether a scanner endpoint is configured.
func (s *ScanService) Enabled() bool {
	return s.cfg.Enabled() && s.scanner != nil
}

// InitialState returns the scan status and quarantine flag new content starts
// in. With no scanner configured content is admitted immediately.
func (s *ScanService) InitialState() (models.ScanStatus, bool) {
	if s.Enabled() {
		return models.ScanPending, true
	}
	return models.ScanSkipped, false
}

// Dispatch enqueues a scan for one document revision.
func (s *ScanService) Dispatch(doc *models.Document) {
	if !s.Enabled() || doc == nil || doc.IsFolder() {
		return
	}
	job := jobs.Job{
		ID:   fmt.Sprintf("%s@%d", doc.ID, doc.Version),
		Type: scanJobType,
		Payload: ScanJob{
			DocumentID: doc.ID,
			Version:    doc.Version,
			Link:       doc.Link,
			Title:      doc.Title,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue scan",
			zap.String("document_id", doc.ID),
			zap.Int("version", doc.Version),
			zap.Error(err))
	}
}

func (s *ScanService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(ScanJob)
	if !ok {
		s.logger.Error("unexpected scan job payload", zap.String("job_id", job.ID))
		return nil
	}

	scanCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	content, err := s.blobs.Get(scanCtx, payload.Link)
	if err != nil {
		// Blob fetch errors are transient; let the queue retry.
		return fmt.Errorf("fetch content for scan: %w", err)
	}
	defer content.Close()

	result, scanErr := s.scanner.Scan(scanCtx, content)

	status := models.ScanFailed
	quarantined := true
	switch {
	case scanErr == nil && result.Verdict == scanner.VerdictClean:
		status = models.ScanClean
		quarantined = false
	case result.Verdict == scanner.VerdictInfected:
		status = models.ScanInfected
	}

	if err := s.docs.UpdateScanStatus(ctx, payload.DocumentID, payload.Version, status, quarantined); err != nil {
		return fmt.Errorf("record scan verdict: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordScanVerdict(string(status))
	}

	fields := []zap.Field{
		zap.String("document_id", payload.DocumentID),
		zap.Int("version", payload.Version),
		zap.String("status", string(status)),
	}
	if result.Description != "" {
		fields = append(fields, zap.String("signature", result.Description))
	}
	if scanErr != nil {
		fields = append(fields, zap.Error(scanErr))
		s.logger.Warn("scan did not complete cleanly", fields...)
	} else {
		s.logger.Info("scan verdict recorded", fields...)
	}

	s.publishVerdict(payload, status, result.Description)
	return nil
}

func (s *ScanService) publishVerdict(job ScanJob, status models.ScanStatus, signature string) {
	if s.events == nil {
		return
	}
	event := map[string]interface{}{
		"documentId": job.DocumentID,
		"version":    job.Version,
		"title":      job.Title,
		"status":     status,
		"signature":  signature,
	}
	if err := s.events.Publish("documents.scanned", event); err != nil {
		s.logger.Warn("failed to publish scan event",
			zap.String("document_id", job.DocumentID),
			zap.Error(err))
	}
}
