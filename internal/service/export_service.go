package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/train-schedule-api/internal/models"
	appErrors "github.com/noah-isme/train-schedule-api/pkg/errors"
	"github.com/noah-isme/train-schedule-api/pkg/export"
)

// ExportFormat selects the rendering backend for timetable exports.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries a rendered document.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders filtered timetables into downloadable documents.
type ExportService struct {
	trains  trainRepository
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
	maxRows int
}

// NewExportService constructs the export service.
func NewExportService(trains trainRepository, logger *zap.Logger, maxRows int) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &ExportService{
		trains:  trains,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
		maxRows: maxRows,
	}
}

var timetableHeaders = []string{"Train", "From", "To", "Departure", "Arrival", "Platform", "Status", "Type"}

// Timetable renders all trains matching the filter, capped at the configured
// row limit. Requires the admin capability.
func (s *ExportService) Timetable(ctx context.Context, filter models.TrainFilter, format ExportFormat, actor *models.JWTClaims) (*ExportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	// Export is a single oversized page over the same listing engine.
	filter.Page = 1
	filter.Limit = s.maxRows
	if err := filter.Normalize(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	trains, total, err := s.trains.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if total > s.maxRows {
		s.logger.Warn("timetable export truncated", zap.Int("total", total), zap.Int("max_rows", s.maxRows))
	}

	dataset := export.Dataset{Headers: timetableHeaders, Rows: make([][]string, 0, len(trains))}
	for _, train := range trains {
		dataset.Rows = append(dataset.Rows, []string{
			train.TrainNumber,
			train.DepartureStation,
			train.ArrivalStation,
			train.DepartureTime.Format(time.RFC3339),
			train.ArrivalTime.Format(time.RFC3339),
			train.Platform,
			string(train.Status),
			string(train.Type),
		})
	}

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: "timetable.csv"}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, "Train Timetable")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: "timetable.pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
