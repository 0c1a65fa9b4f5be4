package properties

import (
	"context"
	"errors"
	"strings"
	"time"

	"wisebox-backend/internal/models"
	"wisebox-backend/internal/storage"
	"wisebox-backend/internal/wizard"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const dashboardLimit = 500

var (
	ErrNotFound         = errors.New("property not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidType      = errors.New("invalid property type")
	ErrIncompleteRecord = errors.New("property type and ownership type are required")
)

type Notifier interface {
	SendPropertyReceipt(ctx context.Context, user models.User, rec Record) (string, error)
}

// UserDirectory resolves the owner of a record for the receipt email.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type Service struct {
	repo          Repository
	blobs         storage.BlobStore
	presignExpiry time.Duration
	location      *time.Location
	users         UserDirectory
	notifier      Notifier
	now           func() time.Time
}

func NewService(repo Repository, blobs storage.BlobStore, presignExpiry time.Duration, location *time.Location, users UserDirectory, notifier Notifier) *Service {
	if location == nil {
		location = time.UTC
	}
	if presignExpiry <= 0 {
		presignExpiry = 24 * time.Hour
	}
	return &Service{
		repo:          repo,
		blobs:         blobs,
		presignExpiry: presignExpiry,
		location:      location,
		users:         users,
		notifier:      notifier,
		now:           time.Now,
	}
}

// Create persists a submitted wizard state for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, state wizard.State) (Record, error) {
	if state.PropertyType == "" || state.OwnershipType == "" {
		return Record{}, ErrIncompleteRecord
	}

	now := s.now().In(s.location)
	rec := Record{
		ID:         primitive.NewObjectID().Hex(),
		OwnerID:    ownerID,
		Status:     StatusSubmitted,
		State:      state.Clone(),
		ObjectKeys: state.ObjectKeys(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ReferencedObjects reports which blob keys belong to submitted records.
func (s *Service) ReferencedObjects(ctx context.Context, keys []string) (map[string]bool, error) {
	return s.repo.ReferencedObjects(ctx, keys)
}

func (s *Service) ListOwn(ctx context.Context, ownerID string, limit, offset int64) ([]Summary, int64, error) {
	filter := ListFilter{OwnerID: ownerID}
	records, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return summarizeAll(records), total, nil
}

func (s *Service) Dashboard(ctx context.Context, ownerID string) (Dashboard, error) {
	records, err := s.repo.List(ctx, ListFilter{OwnerID: ownerID}, dashboardLimit, 0)
	if err != nil {
		return Dashboard{}, err
	}

	dash := Dashboard{Properties: summarizeAll(records)}
	for _, sum := range dash.Properties {
		dash.Total++
		dash.Documents += sum.DocumentCount
		switch sum.Compliance {
		case ComplianceCompliant:
			dash.Compliant++
		case ComplianceWarning:
			dash.Warning++
		case ComplianceCritical:
			dash.Critical++
		}
	}
	return dash, nil
}

// Get returns a record with per-slot document status and download links.
// Records of other users are reported as not found unless asAdmin is set.
func (s *Service) Get(ctx context.Context, callerID, id string, asAdmin bool) (Details, error) {
	rec, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Details{}, ErrNotFound
		}
		return Details{}, err
	}
	if !asAdmin && rec.OwnerID != callerID {
		return Details{}, ErrNotFound
	}

	docs := make([]DocumentStatus, 0, len(wizard.AllSlots()))
	for _, slot := range wizard.AllSlots() {
		ds, _ := rec.State.Slot(slot)
		status := DocumentStatus{
			Slot:     slot.String(),
			Label:    slotLabel(slot),
			Uploaded: len(ds.Files) > 0,
			Title:    ds.Title,
			Category: ds.Category,
			Notes:    ds.Notes,
			Files:    make([]FileLink, 0, len(ds.Files)),
		}
		for _, f := range ds.Files {
			link := FileLink{File: f}
			if s.blobs != nil && f.ObjectKey != "" {
				url, err := s.blobs.PresignedURL(ctx, f.ObjectKey, s.presignExpiry)
				if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
					return Details{}, err
				}
				link.URL = url
			}
			status.Files = append(status.Files, link)
		}
		docs = append(docs, status)
	}

	return Details{Summary: Summarize(rec), Record: rec, Documents: docs}, nil
}

func (s *Service) ListAdmin(ctx context.Context, filter ListFilter, limit, offset int64) ([]Summary, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.PropertyType = strings.ToLower(strings.TrimSpace(filter.PropertyType))
	filter.OwnerID = strings.TrimSpace(filter.OwnerID)

	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, ErrInvalidStatus
	}
	if filter.PropertyType != "" {
		if _, err := wizard.ParsePropertyType(filter.PropertyType); err != nil {
			return nil, 0, ErrInvalidType
		}
	}

	records, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return summarizeAll(records), total, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Record, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !IsValidStatus(status) {
		return Record{}, ErrInvalidStatus
	}

	updated, err := s.repo.UpdateStatus(ctx, strings.TrimSpace(id), status, s.now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return updated, nil
}

// NotifyReceipt emails the owner a submission receipt. It is a no-op when
// no mailer is configured.
func (s *Service) NotifyReceipt(ctx context.Context, rec Record) error {
	if s.notifier == nil || s.users == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, rec.OwnerID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil
	}
	_, err = s.notifier.SendPropertyReceipt(ctx, user, rec)
	return err
}

func summarizeAll(records []Record) []Summary {
	out := make([]Summary, 0, len(records))
	for _, rec := range records {
		out = append(out, Summarize(rec))
	}
	return out
}
