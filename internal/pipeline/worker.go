package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/notegest/internal/document"
	"github.com/dgallion1/notegest/internal/parser"
	"github.com/dgallion1/notegest/internal/pathstore"
	"github.com/dgallion1/notegest/internal/section"
)

// WorkerOptions bounds the work a single job may do at once.
type WorkerOptions struct {
	Parser               parser.Options
	ParseConcurrency     int
	MaxConcurrentPublish int
}

// Worker processes a single notes job.
type Worker struct {
	publisher *pathstore.Publisher
	stats     *Stats
	log       *slog.Logger
	opts      WorkerOptions
}

func NewWorker(publisher *pathstore.Publisher, stats *Stats, log *slog.Logger, opts WorkerOptions) *Worker {
	if opts.MaxConcurrentPublish <= 0 {
		opts.MaxConcurrentPublish = 1
	}
	return &Worker{
		publisher: publisher,
		stats:     stats,
		log:       log,
		opts:      opts,
	}
}

// DocPrefix is the pathstore prefix every node of a document lives under.
func DocPrefix(userID, docID string) string {
	return fmt.Sprintf("notes/users/%s/documents/%s", userID, docID)
}

// Process runs split, compile and publish for a job and sets its final
// status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "user_id", job.UserID)

	// Phase 1: split the file into blocks.
	job.SetStatus(StatusSplitting, "splitting")
	p, err := parser.ForFile(job.Filename, w.opts.Parser)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "splitting")
		return
	}

	src, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("split failed", "error", err)
		job.AddError(fmt.Sprintf("split: %s", err))
		job.SetStatus(StatusFailed, "splitting")
		return
	}
	job.releaseFileData()
	if job.Title != "" {
		src.Title = job.Title
	}
	job.SetTotalBlocks(len(src.Blocks))
	log.Info("split notes", "blocks", len(src.Blocks))

	if len(src.Blocks) == 0 {
		job.AddError("no note blocks found")
		job.SetStatus(StatusFailed, "splitting")
		return
	}

	// Phase 2: compile every block into a reconciled section.
	job.SetStatus(StatusParsing, "parsing")
	start := time.Now()
	doc, err := document.Compile(ctx, src, document.Options{
		Concurrency: w.opts.ParseConcurrency,
		Logger:      log,
	})
	if err != nil {
		log.Error("compile aborted", "error", err)
		job.AddError(fmt.Sprintf("compile: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if w.stats != nil {
		w.stats.Record(time.Since(start), len(doc.Sections), len(doc.Failures))
	}
	job.SetResult(doc)
	for _, f := range doc.Failures {
		job.AddError(f.Error())
	}
	log.Info("compiled notes", "sections", len(doc.Sections), "failures", len(doc.Failures))

	if len(doc.Sections) == 0 {
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	hadErrors := len(doc.Failures) > 0

	// Phase 3: publish.
	if w.publisher != nil {
		job.SetStatus(StatusPublishing, "publishing")
		published, metaErr := w.publish(ctx, log, job, doc)
		if published < len(doc.Sections) || metaErr != nil {
			hadErrors = true
		}
		if published == 0 {
			job.SetStatus(StatusFailed, "publishing")
			return
		}
	}

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// publish writes every section plus the document meta node. It returns how
// many sections were stored and the meta write or cancellation error.
func (w *Worker) publish(ctx context.Context, log *slog.Logger, job *Job, doc *document.Document) (int, error) {
	docPrefix := DocPrefix(job.UserID, job.DocID)
	source := "notegest:" + job.DocID

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		published int
	)
	sem := make(chan struct{}, w.opts.MaxConcurrentPublish)
schedule:
	for _, s := range doc.Sections {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break schedule
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(s *section.Section) {
			defer wg.Done()
			defer func() { <-sem }()
			links, err := w.publisher.PublishSection(ctx, docPrefix, source, s)
			if err != nil {
				log.Error("publish failed", "header", s.Header(), "error", err)
				job.AddError(err.Error())
				return
			}
			job.AddPublished(1, links)
			mu.Lock()
			published++
			mu.Unlock()
		}(s)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		job.AddError(fmt.Sprintf("publish: %s", err))
		return published, err
	}

	err := w.publisher.PublishMeta(ctx, docPrefix, source, map[string]any{
		"filename":   job.Filename,
		"title":      doc.Title,
		"headers":    doc.Headers,
		"sections":   published,
		"failures":   len(doc.Failures),
		"created_at": job.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		log.Error("meta write failed", "error", err)
		job.AddError(fmt.Sprintf("meta: %s", err))
	}

	log.Info("publish complete", "published", published, "total", len(doc.Sections))
	return published, err
}
