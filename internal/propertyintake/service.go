// Package propertyintake runs live "add property" wizard sessions on top of
// the wizard package: it owns the sessions, stores uploaded blobs, geocodes
// the address, saves drafts and hands the final state to the property store.
package propertyintake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"wisebox-backend/internal/drafts"
	"wisebox-backend/internal/geocode"
	"wisebox-backend/internal/properties"
	"wisebox-backend/internal/storage"
	"wisebox-backend/internal/wizard"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("wizard session not found")
	ErrForbidden          = errors.New("wizard session belongs to another user")
	ErrNoFiles            = errors.New("no files in upload")
	ErrGeocoderDisabled   = errors.New("geocoding is not configured")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// Uploader stores validated blobs. *storage.Uploader implements it.
type Uploader interface {
	Store(ctx context.Context, prefix string, uploads []storage.Upload) ([]storage.Stored, []storage.Rejected, error)
	DeleteAll(ctx context.Context, keys []string) int
	Objects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// PropertyStore persists submitted wizard states and answers which blob keys
// submitted records hold.
type PropertyStore interface {
	Create(ctx context.Context, ownerID string, state wizard.State) (properties.Record, error)
	ReferencedObjects(ctx context.Context, keys []string) (map[string]bool, error)
}

type View struct {
	ID          string          `json:"id"`
	DraftID     string          `json:"draftId,omitempty"`
	CurrentStep int             `json:"currentStep"`
	Closed      bool            `json:"closed"`
	Steps       []wizard.Step   `json:"steps"`
	Progress    wizard.Progress `json:"progress"`
	State       wizard.State    `json:"state"`
	Map         MapView         `json:"map"`
}

type MapView struct {
	Position geocode.Coordinates `json:"position"`
	Pin      geocode.Pin         `json:"pin"`
}

type UploadResult struct {
	Accepted []wizard.File      `json:"accepted"`
	Rejected []storage.Rejected `json:"rejected"`
	Session  View               `json:"session"`
}

type Service struct {
	store    *SessionStore
	uploads  Uploader
	geocoder geocode.Geocoder
	drafts   drafts.Repository
	records  PropertyStore
	log      *slog.Logger
	now      func() time.Time
}

// NewService wires the session store's eviction hook to blob cleanup, so
// abandoned sessions do not leave orphaned uploads behind. geocoder may be
// nil.
func NewService(store *SessionStore, uploads Uploader, geocoder geocode.Geocoder, draftRepo drafts.Repository, records PropertyStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:    store,
		uploads:  uploads,
		geocoder: geocoder,
		drafts:   draftRepo,
		records:  records,
		log:      log,
		now:      time.Now,
	}
	store.onEvict = s.evicted
	return s
}

func (s *Service) Create(ownerID string) View {
	sess := newSession(uuid.NewString(), ownerID, wizard.New(), s.now())
	s.store.Add(sess)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view()
}

func (s *Service) Get(ownerID, id string) (View, error) {
	sess, err := s.session(ownerID, id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touched = s.now()
	return sess.view(), nil
}

// Apply runs one wizard mutation under the session lock.
func (s *Service) Apply(ownerID, id string, op func(w *wizard.Wizard) error) (View, error) {
	sess, err := s.session(ownerID, id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := op(sess.wiz); err != nil {
		return View{}, err
	}
	sess.touched = s.now()
	return sess.view(), nil
}

// Upload stores the accepted files and appends them to slot. Rejected files
// are reported per file and never abort the others.
func (s *Service) Upload(ctx context.Context, ownerID, id string, slot wizard.Slot, uploads []storage.Upload) (UploadResult, error) {
	if len(uploads) == 0 {
		return UploadResult{}, ErrNoFiles
	}
	if !slot.Valid() {
		return UploadResult{}, wizard.ErrInvalidSlot
	}
	sess, err := s.session(ownerID, id)
	if err != nil {
		return UploadResult{}, err
	}

	sess.mu.Lock()
	closed := sess.wiz.Closed()
	sess.mu.Unlock()
	if closed {
		return UploadResult{}, wizard.ErrSessionClosed
	}

	// Blob writes happen outside the session lock.
	stored, rejected, err := s.uploads.Store(ctx, path.Join("wizard", sess.ID, slot.String()), uploads)
	if err != nil {
		return UploadResult{}, err
	}

	files := make([]wizard.File, 0, len(stored))
	for _, st := range stored {
		files = append(files, wizard.File{
			ID:          st.ID,
			Name:        st.Name,
			Size:        st.Size,
			ContentType: st.ContentType,
			ObjectKey:   st.ObjectKey,
			UploadedAt:  st.UploadedAt,
		})
	}

	sess.mu.Lock()
	if len(files) > 0 {
		if err := sess.wiz.UploadFiles(slot, files); err != nil {
			sess.mu.Unlock()
			s.uploads.DeleteAll(ctx, objectKeys(files))
			return UploadResult{}, err
		}
	}
	sess.touched = s.now()
	view := sess.view()
	sess.mu.Unlock()

	if rejected == nil {
		rejected = []storage.Rejected{}
	}
	return UploadResult{Accepted: files, Rejected: rejected, Session: view}, nil
}

// Geocode looks up the session's address and moves the pin. A failed lookup
// is not an error: the pin keeps its position and records the reason.
func (s *Service) Geocode(ctx context.Context, ownerID, id string) (MapView, error) {
	sess, err := s.session(ownerID, id)
	if err != nil {
		return MapView{}, err
	}

	sess.mu.Lock()
	if sess.wiz.Closed() {
		sess.mu.Unlock()
		return MapView{}, wizard.ErrSessionClosed
	}
	address := sess.wiz.State().PropertyDetails.Address
	sess.mu.Unlock()

	var coords geocode.Coordinates
	lookupErr := ErrGeocoderDisabled
	if s.geocoder != nil {
		coords, lookupErr = s.geocoder.Geocode(ctx, address)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if lookupErr != nil {
		sess.pin.Fail(lookupErr)
	} else {
		sess.pin.Resolve(coords)
	}
	sess.touched = s.now()
	return sess.mapView(), nil
}

// MovePin sets a manual marker position that wins over the geocoded one.
func (s *Service) MovePin(ownerID, id string, c geocode.Coordinates) (MapView, error) {
	if !c.Valid() {
		return MapView{}, ErrInvalidCoordinates
	}
	sess, err := s.session(ownerID, id)
	if err != nil {
		return MapView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.wiz.Closed() {
		return MapView{}, wizard.ErrSessionClosed
	}
	sess.pin.Move(c)
	sess.touched = s.now()
	return sess.mapView(), nil
}

// SaveDraft snapshots the session. The first save assigns the draft id;
// later saves overwrite the same draft.
func (s *Service) SaveDraft(ctx context.Context, ownerID, id string) (drafts.Summary, error) {
	sess, err := s.session(ownerID, id)
	if err != nil {
		return drafts.Summary{}, err
	}

	sess.mu.Lock()
	if sess.wiz.Closed() {
		sess.mu.Unlock()
		return drafts.Summary{}, wizard.ErrSessionClosed
	}
	if sess.draftID == "" {
		sess.draftID = uuid.NewString()
	}
	draft := &drafts.Draft{
		ID:          sess.draftID,
		UserID:      sess.OwnerID,
		State:       sess.wiz.State(),
		CurrentStep: sess.wiz.CurrentStep(),
		Pin:         sess.pin,
	}
	sess.touched = s.now()
	sess.mu.Unlock()

	if err := s.drafts.Save(ctx, draft); err != nil {
		return drafts.Summary{}, fmt.Errorf("save draft: %w", err)
	}
	return draft.Summary(), nil
}

// ResumeDraft opens a new live session from a saved draft.
func (s *Service) ResumeDraft(ctx context.Context, ownerID, draftID string) (View, error) {
	draft, err := s.ownDraft(ctx, ownerID, draftID)
	if err != nil {
		return View{}, err
	}

	wiz, err := wizard.Restore(draft.State, draft.CurrentStep)
	if err != nil {
		return View{}, fmt.Errorf("restore draft %s: %w", draftID, err)
	}
	sess := newSession(uuid.NewString(), ownerID, wiz, s.now())
	sess.pin = draft.Pin
	sess.draftID = draft.ID
	s.store.Add(sess)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

func (s *Service) ListDrafts(ctx context.Context, ownerID string) ([]drafts.Summary, error) {
	items, err := s.drafts.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]drafts.Summary, 0, len(items))
	for _, d := range items {
		out = append(out, d.Summary())
	}
	return out, nil
}

// DeleteDraft removes the snapshot and the blobs only it pointed at. Files a
// live session resumed from it still shows are kept.
func (s *Service) DeleteDraft(ctx context.Context, ownerID, draftID string) error {
	draft, err := s.ownDraft(ctx, ownerID, draftID)
	if err != nil {
		return err
	}
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		return err
	}
	s.release(ctx, "wizard draft delete", draft.State.ObjectKeys(), nil)
	return nil
}

// Submit persists the final state and closes the session. The session is
// only closed once the record is stored, so a failed write can be retried.
func (s *Service) Submit(ctx context.Context, ownerID, id string) (properties.Record, error) {
	sess, err := s.session(ownerID, id)
	if err != nil {
		return properties.Record{}, err
	}

	sess.mu.Lock()
	if sess.wiz.Closed() {
		sess.mu.Unlock()
		return properties.Record{}, wizard.ErrSessionClosed
	}
	dry, err := wizard.Restore(sess.wiz.State(), sess.wiz.CurrentStep())
	if err != nil {
		sess.mu.Unlock()
		return properties.Record{}, err
	}
	state, err := dry.Submit()
	if err != nil {
		sess.mu.Unlock()
		return properties.Record{}, err
	}

	rec, err := s.records.Create(ctx, sess.OwnerID, state)
	if err != nil {
		sess.mu.Unlock()
		return properties.Record{}, err
	}
	_, _ = sess.wiz.Submit()
	draftID := sess.draftID
	sess.mu.Unlock()

	s.store.Remove(sess.ID)

	if draftID != "" {
		s.dropSubmittedDraft(ctx, draftID)
	}
	return rec, nil
}

// dropSubmittedDraft deletes the draft a submitted session came from. A
// sibling session may have saved files into it that the record does not
// have; those go too unless that session is still open.
func (s *Service) dropSubmittedDraft(ctx context.Context, draftID string) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err == nil {
		err = s.drafts.Delete(ctx, draftID)
	}
	if err != nil {
		if !errors.Is(err, drafts.ErrNotFound) {
			s.log.Warn("wizard submit: draft cleanup failed",
				slog.String("draft_id", draftID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	s.release(ctx, "wizard submit", draft.State.ObjectKeys(), nil)
}

// Discard drops a live session and deletes the blobs no saved draft still
// points to.
func (s *Service) Discard(ctx context.Context, ownerID, id string) error {
	sess, err := s.session(ownerID, id)
	if err != nil {
		return err
	}
	s.store.Remove(sess.ID)
	s.releaseBlobs(ctx, sess)
	return nil
}

func (s *Service) session(ownerID, id string) (*Session, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if sess.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return sess, nil
}

func (s *Service) ownDraft(ctx context.Context, ownerID, draftID string) (*drafts.Draft, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.UserID != ownerID {
		return nil, drafts.ErrNotFound
	}
	return draft, nil
}

func (s *Service) evicted(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.releaseBlobs(ctx, sess)
}

// view must be called with sess.mu held.
func (sess *Session) view() View {
	return View{
		ID:          sess.ID,
		DraftID:     sess.draftID,
		CurrentStep: sess.wiz.CurrentStep(),
		Closed:      sess.wiz.Closed(),
		Steps:       sess.wiz.Steps(),
		Progress:    sess.wiz.Progress(),
		State:       sess.wiz.State(),
		Map:         sess.mapView(),
	}
}

func (sess *Session) mapView() MapView {
	return MapView{Position: sess.pin.Position(), Pin: sess.pin}
}

func objectKeys(files []wizard.File) []string {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.ObjectKey != "" {
			keys = append(keys, f.ObjectKey)
		}
	}
	return keys
}
