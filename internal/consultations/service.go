// Package consultations books paid advisory sessions against the catalog's
// daily time slots and hands the free introductory call off to an external
// scheduler.
package consultations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"wisebox-backend/internal/cache"
	"wisebox-backend/internal/catalog"
	"wisebox-backend/internal/models"
	"wisebox-backend/internal/schedule"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound       = errors.New("consultation not found")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrNotCancelable  = errors.New("consultation can no longer be canceled")
	ErrUnknownService = catalog.ErrServiceNotFound
)

type Notifier interface {
	SendConsultationConfirmation(ctx context.Context, user models.User, c models.Consultation) (string, error)
}

type UserDirectory interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type Service struct {
	repo     Repository
	catalog  *catalog.Catalog
	cache    cache.Cache
	cacheTTL time.Duration
	location *time.Location
	freeURL  string
	users    UserDirectory
	notifier Notifier
	now      func() time.Time

	// bookMu serializes the check-then-insert of a booking within this process.
	bookMu sync.Mutex
}

type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Location *time.Location
	FreeURL  string
	Users    UserDirectory
	Notifier Notifier
}

func NewService(repo Repository, cat *catalog.Catalog, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.Disabled
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		repo:     repo,
		catalog:  cat,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		location: opts.Location,
		freeURL:  opts.FreeURL,
		users:    opts.Users,
		notifier: opts.Notifier,
		now:      time.Now,
	}
}

func (s *Service) Services() []catalog.Service {
	return s.catalog.Services()
}

func availabilityKey(date, serviceID string) string {
	return cache.Key("availability", date, serviceID)
}

func availabilityPrefix(date string) string {
	return cache.Key("availability", date, "")
}

// Availability lists the slots on date that can still take a booking of the
// given service.
func (s *Service) Availability(ctx context.Context, date, serviceID string) (Availability, error) {
	svc, err := s.catalog.Service(strings.TrimSpace(serviceID))
	if err != nil {
		return Availability{}, err
	}
	past, err := schedule.IsDatePast(date, s.location, s.now())
	if err != nil {
		return Availability{}, err
	}
	if past {
		return Availability{}, schedule.ErrDatePast
	}

	key := availabilityKey(date, svc.ID)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var out Availability
		if err := json.Unmarshal(cached, &out); err == nil {
			// Cached lists may include slots that passed since they were stored.
			if schedule.IsToday(date, s.location, s.now()) {
				out.Slots, err = schedule.FilterPastSlots(date, out.Slots, s.location, s.now())
				if err != nil {
					return Availability{}, err
				}
			}
			return out, nil
		}
	}

	reserved, err := s.reserved(ctx, date)
	if err != nil {
		return Availability{}, err
	}
	slots, err := schedule.Available(date, s.catalog.TimeSlots(), svc.Duration, reserved, s.location, s.now())
	if err != nil {
		return Availability{}, err
	}

	out := Availability{
		Date:      date,
		ServiceID: svc.ID,
		Duration:  svc.Duration,
		Timezone:  s.location.String(),
		Slots:     slots,
	}
	if payload, err := json.Marshal(out); err == nil {
		_ = s.cache.Set(ctx, key, payload, s.cacheTTL)
	}
	return out, nil
}

// Book reserves a paid consultation for userID. The free service is never
// stored; the result points the caller to the external scheduler instead.
func (s *Service) Book(ctx context.Context, userID string, req BookRequest) (BookResult, error) {
	svc, err := s.catalog.Service(strings.TrimSpace(req.ServiceID))
	if err != nil {
		return BookResult{}, err
	}
	if svc.Free() {
		return BookResult{Free: true, RedirectURL: s.freeURL}, nil
	}

	s.bookMu.Lock()
	defer s.bookMu.Unlock()

	reserved, err := s.reserved(ctx, req.Date)
	if err != nil {
		return BookResult{}, err
	}
	if err := schedule.CheckBooking(req.Date, req.Time, svc.Duration, s.catalog.TimeSlots(), reserved, s.location, s.now()); err != nil {
		return BookResult{}, err
	}

	now := s.now().In(s.location)
	c := models.Consultation{
		ID:          primitive.NewObjectID().Hex(),
		UserID:      userID,
		PropertyID:  strings.TrimSpace(req.PropertyID),
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Date:        req.Date,
		Time:        req.Time,
		Duration:    svc.Duration,
		Price:       svc.Price,
		Notes:       strings.TrimSpace(req.Notes),
		Status:      models.ConsultationPendingPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return BookResult{}, schedule.ErrSlotTaken
		}
		return BookResult{}, err
	}

	s.invalidate(ctx, req.Date)
	return BookResult{Consultation: &c}, nil
}

func (s *Service) ListOwn(ctx context.Context, userID string, limit, offset int64) ([]models.Consultation, int64, error) {
	return s.list(ctx, ListFilter{UserID: userID}, limit, offset)
}

func (s *Service) ListAdmin(ctx context.Context, filter ListFilter, limit, offset int64) ([]models.Consultation, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.UserID = strings.TrimSpace(filter.UserID)
	filter.Date = strings.TrimSpace(filter.Date)
	if filter.Status != "" && !models.Contains(models.ConsultationStatuses, filter.Status) {
		return nil, 0, ErrInvalidStatus
	}
	if filter.Date != "" {
		if _, err := schedule.ParseDate(filter.Date, s.location); err != nil {
			return nil, 0, err
		}
	}
	return s.list(ctx, filter, limit, offset)
}

func (s *Service) list(ctx context.Context, filter ListFilter, limit, offset int64) ([]models.Consultation, int64, error) {
	items, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (models.Consultation, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.Contains(models.ConsultationStatuses, status) {
		return models.Consultation{}, ErrInvalidStatus
	}
	return s.setStatus(ctx, strings.TrimSpace(id), status)
}

// Cancel lets a user cancel their own booking while it is still upcoming.
// Bookings of other users are reported as not found.
func (s *Service) Cancel(ctx context.Context, userID, id string) (models.Consultation, error) {
	id = strings.TrimSpace(id)
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Consultation{}, ErrNotFound
		}
		return models.Consultation{}, err
	}
	if c.UserID != userID {
		return models.Consultation{}, ErrNotFound
	}
	if c.Status != models.ConsultationPendingPayment && c.Status != models.ConsultationConfirmed {
		return models.Consultation{}, ErrNotCancelable
	}
	if past, err := schedule.IsSlotPast(c.Date, c.Time, s.location, s.now()); err == nil && past {
		return models.Consultation{}, ErrNotCancelable
	}
	return s.setStatus(ctx, id, models.ConsultationCanceled)
}

// setStatus reports schedule.ErrSlotTaken when reviving a booking would put
// two live bookings on the same start; the unique index refuses it.
func (s *Service) setStatus(ctx context.Context, id, status string) (models.Consultation, error) {
	updated, err := s.repo.UpdateStatus(ctx, id, status, s.now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Consultation{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return models.Consultation{}, schedule.ErrSlotTaken
		}
		return models.Consultation{}, err
	}
	s.invalidate(ctx, updated.Date)
	return updated, nil
}

// NotifyConfirmation emails the booking details to its owner. It is a no-op
// when no mailer is configured.
func (s *Service) NotifyConfirmation(ctx context.Context, c models.Consultation) error {
	if s.notifier == nil || s.users == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil
	}
	_, err = s.notifier.SendConsultationConfirmation(ctx, user, c)
	return err
}

func (s *Service) reserved(ctx context.Context, date string) ([]schedule.Interval, error) {
	booked, err := s.repo.ActiveOnDate(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]schedule.Interval, 0, len(booked))
	for _, c := range booked {
		iv, err := schedule.NewInterval(c.Time, c.Duration)
		if err != nil {
			continue
		}
		out = append(out, iv)
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context, date string) {
	if date == "" {
		return
	}
	_ = s.cache.DeletePrefix(ctx, availabilityPrefix(date))
}
