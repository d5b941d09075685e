package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wasilisafish/proposal-builder/internal/completeness"
	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/encoder"
	"github.com/wasilisafish/proposal-builder/internal/extractor"
	"github.com/wasilisafish/proposal-builder/internal/parser"
	"github.com/wasilisafish/proposal-builder/internal/port"
	"github.com/wasilisafish/proposal-builder/internal/validator"
)

// Envelope messages for replies that carry no usable data.
const (
	MessageEmptyReply     = "No text content found"
	NoteEmptyReply        = "No text content found in document. Try a clearer image."
	MessageNoFieldsFound  = "No policy data could be extracted from the document."
	NoteNoFieldsFound     = "Try a clearer scan or a different page of the declaration."
	NoteMalformedReply    = "The extraction reply could not be read as JSON."
	defaultPrepareWorkers = 4
)

// Recorder receives pipeline metrics.
type Recorder interface {
	RecordExtraction(status string)
	ObserveStage(stage string, d time.Duration)
	AddPagesRasterized(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordExtraction(string) {}

func (nopRecorder) ObserveStage(string, time.Duration) {}

func (nopRecorder) AddPagesRasterized(int) {}

// ExtractionService turns one submission of uploaded files into one envelope.
type ExtractionService interface {
	// Extract always returns a non-nil envelope. The error is the failure that
	// produced a failed envelope, or nil when the pipeline ran to completion.
	Extract(ctx context.Context, files []*domain.UploadedFile) (*domain.ExtractionResult, error)
}

// ExtractionDeps are the collaborators of the extraction pipeline.
type ExtractionDeps struct {
	Validator    *validator.FileValidator
	Rasterizer   port.PDFRasterizer
	Images       port.ImagePreparer
	Client       port.ExtractionClient
	Parser       *parser.ResponseParser
	Completeness completeness.Policy
	Metrics      Recorder
	Logger       *slog.Logger

	MaxFiles    int
	Parallelism int

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

type extractionService struct {
	validator    *validator.FileValidator
	rasterizer   port.PDFRasterizer
	images       port.ImagePreparer
	client       port.ExtractionClient
	parser       *parser.ResponseParser
	completeness completeness.Policy
	metrics      Recorder
	logger       *slog.Logger
	maxFiles     int
	parallelism  int
	now          func() time.Time
	newID        func() string
}

// NewExtractionService creates a new ExtractionService implementation.
func NewExtractionService(deps ExtractionDeps) ExtractionService {
	s := &extractionService{
		validator:    deps.Validator,
		rasterizer:   deps.Rasterizer,
		images:       deps.Images,
		client:       deps.Client,
		parser:       deps.Parser,
		completeness: deps.Completeness,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		maxFiles:     deps.MaxFiles,
		parallelism:  deps.Parallelism,
		now:          deps.Now,
		newID:        deps.NewID,
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.parallelism <= 0 {
		s.parallelism = defaultPrepareWorkers
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	if s.completeness == (completeness.Policy{}) {
		s.completeness = completeness.DefaultPolicy()
	}
	return s
}

// preparedFile holds the pages and notes produced for one upload.
type preparedFile struct {
	pages []domain.PageImage
	notes []string
}

func (s *extractionService) Extract(ctx context.Context, files []*domain.UploadedFile) (*domain.ExtractionResult, error) {
	start := s.now()
	result := domain.NewExtractionResult(domain.DocumentInfo{
		ID:         "doc_" + s.newID(),
		FileName:   joinFileNames(files),
		UploadedAt: domain.FormatTimestamp(start),
	}, "extr_"+s.newID())

	err := s.run(ctx, files, result)
	if err != nil {
		s.fail(ctx, result, err)
	}
	s.metrics.RecordExtraction(string(result.Status))
	s.logger.Info("extractionService.Extract: finished",
		"document_id", result.Document.ID,
		"extraction_id", result.ExtractionID,
		"files", len(files),
		"status", result.Status,
		"missing", len(result.MissingFields),
		"duration", time.Since(start),
	)
	return result, err
}

func (s *extractionService) run(ctx context.Context, files []*domain.UploadedFile, result *domain.ExtractionResult) error {
	checked, err := s.validate(files)
	if err != nil {
		return err
	}

	stageStart := time.Now()
	prepared, err := s.prepare(ctx, files, checked)
	if err != nil {
		return err
	}
	s.metrics.ObserveStage("prepare", time.Since(stageStart))

	var pages []domain.PageImage
	for _, p := range prepared {
		pages = append(pages, p.pages...)
		result.Notes = append(result.Notes, p.notes...)
	}
	images := encoder.EncodePages(pages)

	stageStart = time.Now()
	out, err := s.client.Extract(ctx, port.ExtractionInput{
		Images:      images,
		Instruction: extractor.BuildInstruction(len(images)),
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveStage("extract", time.Since(stageStart))
	s.logger.Info("extractionService.run: reply received",
		"document_id", result.Document.ID,
		"provider", out.Provider,
		"model", out.ModelUsed,
		"pages", len(images),
	)

	if strings.TrimSpace(out.RawText) == "" {
		result.Error = MessageEmptyReply
		result.Notes = append(result.Notes, NoteEmptyReply)
		return nil
	}

	stageStart = time.Now()
	parsed, err := s.parser.Parse(out.RawText)
	if err != nil {
		var me *domain.MalformedResponseError
		if errors.As(err, &me) {
			s.logger.Warn("extractionService.run: unparseable reply",
				"document_id", result.Document.ID,
				"span", extractor.Truncate(me.Span, 500),
			)
		}
		return err
	}
	s.metrics.ObserveStage("parse", time.Since(stageStart))

	result.PolicySnapshot = parsed.Snapshot
	result.MissingFields = parsed.MissingFields
	result.Notes = append(result.Notes, parsed.Notes...)

	summary := s.completeness.Evaluate(parsed.MissingFields)
	result.Status = summary.Status
	if summary.Status == domain.StatusFailed {
		result.Error = MessageNoFieldsFound
		result.Notes = append(result.Notes, NoteNoFieldsFound)
	}
	return nil
}

// validate checks every file before any work starts. The returned results
// carry each file's canonical content type and kind.
func (s *extractionService) validate(files []*domain.UploadedFile) ([]validator.Result, error) {
	if len(files) == 0 {
		return nil, &domain.ValidationError{Message: "No file provided", Cause: domain.ErrNoFiles}
	}
	checked := make([]validator.Result, len(files))
	for i, f := range files {
		res, err := s.validator.Check(f)
		if err != nil {
			s.logger.Info("extractionService.validate: rejected", "file", f.FileName, "reason", res.Error)
			return nil, err
		}
		checked[i] = res
	}
	if s.maxFiles > 0 && len(files) > s.maxFiles {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Too many files: at most %d allowed", s.maxFiles),
			Cause:   domain.ErrTooManyFiles,
		}
	}
	return checked, nil
}

// prepare turns every upload into page images. Files are processed
// concurrently; results keep submission order.
func (s *extractionService) prepare(ctx context.Context, files []*domain.UploadedFile, checked []validator.Result) ([]preparedFile, error) {
	out := make([]preparedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, f := range files {
		g.Go(func() error {
			switch checked[i].Kind {
			case domain.FileKindPDF:
				pages, err := s.rasterizer.Rasterize(gctx, f.Data)
				if err != nil {
					return err
				}
				s.metrics.AddPagesRasterized(len(pages))
				out[i] = preparedFile{pages: pages}
			case domain.FileKindImage:
				page, notes, err := s.images.Prepare(gctx, f, checked[i].ContentType)
				if err != nil {
					return err
				}
				out[i] = preparedFile{pages: []domain.PageImage{page}, notes: notes}
			default:
				return &domain.ValidationError{FileName: f.FileName, Message: validator.MessageUnsupportedType, Cause: domain.ErrUnsupportedFileType}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fail resets result to a failed envelope describing err.
func (s *extractionService) fail(ctx context.Context, result *domain.ExtractionResult, err error) {
	result.Status = domain.StatusFailed
	result.PolicySnapshot = domain.PolicySnapshot{}
	result.MissingFields = []string{}
	result.Error = domain.FailureMessage(err)
	if errors.Is(err, domain.ErrMalformedExtractionResponse) {
		result.Notes = append(result.Notes, NoteMalformedReply)
	}

	level := slog.LevelWarn
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "extractionService.Extract: failed",
		"document_id", result.Document.ID,
		"extraction_id", result.ExtractionID,
		"error", err,
	)
}

func joinFileNames(files []*domain.UploadedFile) string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		if f != nil && f.FileName != "" {
			names = append(names, f.FileName)
		}
	}
	return strings.Join(names, ", ")
}
