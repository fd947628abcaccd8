package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/gradestore/internal/models"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
	"github.com/noah-isme/gradestore/pkg/export"
	"github.com/noah-isme/gradestore/pkg/storage"
)

// ExportStore persists a rendered export and returns a download link for it.
type ExportStore interface {
	Publish(ctx context.Context, id, key string, data []byte, format models.ExportFormat) (string, time.Time, error)
}

type gradeSheetSource interface {
	Part(id int64) (*models.Part, error)
	AssignmentForPart(partID int64) (*models.Assignment, error)
	Groups(assignmentID int64) ([]*models.Group, error)
	Students() []*models.Student
	TAs() []*models.TA
	Distribution(ctx context.Context, partID int64) (map[int64][]int64, error)
	EarnedForGroups(ctx context.Context, partID int64, groupIDs []int64) (map[int64]*models.GradeRecord, error)
	Exemptions(ctx context.Context, partID int64) (map[int64]models.Exemption, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var gradeSheetHeaders = []string{"Group", "Members", "Grader", "Earned", "Out Of", "Submitted", "Exempt"}

// ExportService renders the grade sheet of a part and publishes it through an ExportStore.
type ExportService struct {
	source gradeSheetSource
	store  ExportStore
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	newID  func() string
}

// NewExportService constructs an ExportService.
func NewExportService(source gradeSheetSource, store ExportStore, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{source: source, store: store, csv: csv, pdf: pdf, logger: logger, newID: uuid.NewString}
}

// GradeSheet collects one row per group of the part's assignment.
func (s *ExportService) GradeSheet(ctx context.Context, partID int64) (*models.Part, []models.GradeSheetRow, error) {
	part, err := s.source.Part(partID)
	if err != nil {
		return nil, nil, err
	}
	asgn, err := s.source.AssignmentForPart(partID)
	if err != nil {
		return nil, nil, err
	}
	groups, err := s.source.Groups(asgn.ID)
	if err != nil {
		return nil, nil, err
	}
	dist, err := s.source.Distribution(ctx, partID)
	if err != nil {
		return nil, nil, err
	}
	exemptions, err := s.source.Exemptions(ctx, partID)
	if err != nil {
		return nil, nil, err
	}

	logins := make(map[int64]string)
	for _, st := range s.source.Students() {
		logins[st.ID] = st.Login
	}
	graders := make(map[int64]string)
	for _, ta := range s.source.TAs() {
		for _, gid := range dist[ta.ID] {
			graders[gid] = ta.Login
		}
	}

	var stored []int64
	for _, g := range groups {
		if g.ID != 0 {
			stored = append(stored, g.ID)
		}
	}
	grades := map[int64]*models.GradeRecord{}
	if len(stored) > 0 {
		if grades, err = s.source.EarnedForGroups(ctx, partID, stored); err != nil {
			return nil, nil, err
		}
	}

	rows := make([]models.GradeSheetRow, 0, len(groups))
	for _, g := range groups {
		row := models.GradeSheetRow{Group: g.Name, Grader: graders[g.ID], OutOf: part.OutOf}
		for _, id := range g.MemberIDs {
			row.Members = append(row.Members, logins[id])
		}
		if g.ID != 0 {
			if rec, ok := grades[g.ID]; ok {
				row.Earned = rec.Earned
				row.Submitted = rec.Submitted
			}
			_, row.Exempt = exemptions[g.ID]
		}
		rows = append(rows, row)
	}
	return part, rows, nil
}

// ExportGrades renders the part's grade sheet in format and publishes it.
func (s *ExportService) ExportGrades(ctx context.Context, partID int64, format models.ExportFormat) (*models.ExportResult, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export storage not configured")
	}
	part, rows, err := s.GradeSheet(ctx, partID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: gradeSheetHeaders}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, datasetRow(row))
	}

	var payload []byte
	switch format {
	case models.ExportCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("%s grades", part.Name))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := s.newID()
	key := fmt.Sprintf("grades/part-%d/%s.%s", partID, id, format)
	url, expiresAt, err := s.store.Publish(ctx, id, key, payload, format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	s.logger.Info("grade sheet exported",
		zap.Int64("part_id", partID),
		zap.String("format", string(format)),
		zap.Int("rows", len(rows)),
		zap.String("key", key),
	)
	return &models.ExportResult{Key: key, URL: url, Format: format, ExpiresAt: expiresAt}, nil
}

func datasetRow(row models.GradeSheetRow) map[string]string {
	earned := ""
	if row.Earned != nil {
		earned = strconv.FormatFloat(*row.Earned, 'f', 2, 64)
	}
	return map[string]string{
		"Group":     row.Group,
		"Members":   strings.Join(row.Members, " "),
		"Grader":    row.Grader,
		"Earned":    earned,
		"Out Of":    strconv.FormatFloat(row.OutOf, 'f', 2, 64),
		"Submitted": strconv.FormatBool(row.Submitted),
		"Exempt":    strconv.FormatBool(row.Exempt),
	}
}

// LocalExportStore writes exports to disk and links them through signed download tokens
// served under the API prefix.
type LocalExportStore struct {
	files     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	apiPrefix string
}

// NewLocalExportStore constructs a LocalExportStore.
func NewLocalExportStore(files *storage.LocalStorage, signer *storage.SignedURLSigner, apiPrefix string) *LocalExportStore {
	prefix := strings.TrimRight(apiPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &LocalExportStore{files: files, signer: signer, apiPrefix: prefix}
}

// Publish implements ExportStore.
func (s *LocalExportStore) Publish(ctx context.Context, id, key string, data []byte, format models.ExportFormat) (string, time.Time, error) {
	rel, err := s.files.Save(key, data)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Generate(id, rel)
	if err != nil {
		return "", time.Time{}, err
	}
	return fmt.Sprintf("%s/exports/%s", s.apiPrefix, token), expiresAt, nil
}

// Open resolves a download token to the stored file.
func (s *LocalExportStore) Open(token string) (*os.File, *storage.SignedObject, error) {
	obj, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}
	f, err := s.files.Open(obj.Key)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return f, obj, nil
}

// Cleanup deletes exports whose download links have expired.
func (s *LocalExportStore) Cleanup() ([]string, error) {
	return s.files.CleanupOlderThan(s.signer.TTL())
}

// S3ExportStore uploads exports to a bucket and links them with presigned URLs.
type S3ExportStore struct {
	objects *storage.S3Storage
	ttl     time.Duration
	now     func() time.Time
}

// NewS3ExportStore constructs an S3ExportStore.
func NewS3ExportStore(objects *storage.S3Storage, ttl time.Duration) *S3ExportStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3ExportStore{objects: objects, ttl: ttl, now: time.Now}
}

// Publish implements ExportStore.
func (s *S3ExportStore) Publish(ctx context.Context, id, key string, data []byte, format models.ExportFormat) (string, time.Time, error) {
	if err := s.objects.Put(ctx, key, data, format.ContentType()); err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.ttl)
	url, err := s.objects.PresignGet(ctx, key, s.ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, expiresAt, nil
}
