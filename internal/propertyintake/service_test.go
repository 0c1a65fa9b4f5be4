package propertyintake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"wisebox-backend/internal/drafts"
	"wisebox-backend/internal/geocode"
	"wisebox-backend/internal/geocode/mocks"
	"wisebox-backend/internal/properties"
	"wisebox-backend/internal/storage"
	"wisebox-backend/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

type fakeRecords struct {
	mu      sync.Mutex
	created []properties.Record
	err     error
}

func (f *fakeRecords) Create(_ context.Context, ownerID string, state wizard.State) (properties.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return properties.Record{}, f.err
	}
	rec := properties.Record{
		ID:      fmt.Sprintf("p%d", len(f.created)+1),
		OwnerID: ownerID,
		Status:  properties.StatusSubmitted,
		State:   state,
	}
	f.created = append(f.created, rec)
	return rec, nil
}

func (f *fakeRecords) ReferencedObjects(_ context.Context, keys []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := make(map[string]bool)
	for _, rec := range f.created {
		for _, k := range rec.State.ObjectKeys() {
			for _, want := range keys {
				if k == want {
					found[k] = true
				}
			}
		}
	}
	return found, nil
}

type fixture struct {
	svc      *Service
	store    *SessionStore
	blobs    *storage.MemoryStore
	drafts   drafts.Repository
	records  *fakeRecords
	geocoder *mocks.MockGeocoder
	clock    *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newTestClock()
	ctrl := gomock.NewController(t)
	geo := mocks.NewMockGeocoder(ctrl)

	blobs := storage.NewMemoryStore()
	store := NewSessionStore(time.Hour, 0, discardLogger())
	store.now = clock.Now
	records := &fakeRecords{}
	draftRepo := drafts.NewInMemory(0)

	svc := NewService(store, storage.NewUploader(blobs, storage.DefaultPolicy()), geo, draftRepo, records, discardLogger())
	svc.now = clock.Now

	return &fixture{
		svc:      svc,
		store:    store,
		blobs:    blobs,
		drafts:   draftRepo,
		records:  records,
		geocoder: geo,
		clock:    clock,
	}
}

func fileUpload(name string, data []byte) storage.Upload {
	return storage.Upload{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func setTypes(t *testing.T, f *fixture, owner, id string) {
	t.Helper()
	_, err := f.svc.Apply(owner, id, func(w *wizard.Wizard) error {
		if err := w.SetPropertyType(wizard.PropertyApartment); err != nil {
			return err
		}
		return w.SetOwnershipType(wizard.OwnershipShared)
	})
	require.NoError(t, err)
}

func goToLastStep(t *testing.T, f *fixture, owner, id string) {
	t.Helper()
	for i := wizard.FirstStep; i < wizard.LastStep; i++ {
		_, err := f.svc.Apply(owner, id, func(w *wizard.Wizard) error { return w.GoNext() })
		require.NoError(t, err)
	}
}

func TestCreateAndOwnership(t *testing.T) {
	f := newFixture(t)
	view := f.svc.Create("u1")

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, 1, view.CurrentStep)
	assert.Len(t, view.Steps, wizard.StepCount)
	assert.Equal(t, 0, view.Progress.Completed)
	assert.Equal(t, geocode.Dhaka, view.Map.Position)

	_, err := f.svc.Get("u2", view.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get("u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyGatesFirstStep(t *testing.T) {
	f := newFixture(t)
	view := f.svc.Create("u1")

	_, err := f.svc.Apply("u1", view.ID, func(w *wizard.Wizard) error { return w.GoNext() })
	var gate *wizard.GateError
	require.True(t, errors.As(err, &gate))
	assert.Equal(t, []string{"propertyType", "ownershipType"}, gate.Missing)

	setTypes(t, f, "u1", view.ID)
	next, err := f.svc.Apply("u1", view.ID, func(w *wizard.Wizard) error { return w.GoNext() })
	require.NoError(t, err)
	assert.Equal(t, 2, next.CurrentStep)
	assert.Equal(t, wizard.StatusComplete, next.Steps[0].Status)
}

func TestUploadKeepsAcceptedAndReportsRejected(t *testing.T) {
	f := newFixture(t)
	view := f.svc.Create("u1")

	res, err := f.svc.Upload(context.Background(), "u1", view.ID, wizard.DolilAgreements, []storage.Upload{
		fileUpload("sale-deed.pdf", pdfBytes),
		fileUpload("notes.txt", []byte("hello")),
	})
	require.NoError(t, err)

	require.Len(t, res.Accepted, 1)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "notes.txt", res.Rejected[0].Name)
	assert.True(t, strings.HasPrefix(res.Accepted[0].ObjectKey, "wizard/"+view.ID+"/dolilAgreements/"))

	files := res.Session.State.Documents.DolilAgreements.Files
	require.Len(t, files, 1)
	assert.Equal(t, "sale-deed.pdf", files[0].Name)
	assert.Equal(t, wizard.StatusComplete, res.Session.Steps[1].Status)
	assert.Equal(t, 1, f.blobs.Len())

	_, err = f.svc.Upload(context.Background(), "u1", view.ID, wizard.KhatianCS, nil)
	assert.ErrorIs(t, err, ErrNoFiles)
	_, err = f.svc.Upload(context.Background(), "u1", view.ID, wizard.Slot{}, []storage.Upload{fileUpload("a.pdf", pdfBytes)})
	assert.ErrorIs(t, err, wizard.ErrInvalidSlot)
}

func TestUploadKhatianSlotsAreIndependent(t *testing.T) {
	f := newFixture(t)
	view := f.svc.Create("u1")

	res, err := f.svc.Upload(context.Background(), "u1", view.ID, wizard.KhatianSA, []storage.Upload{fileUpload("sa.pdf", pdfBytes)})
	require.NoError(t, err)

	khatian := res.Session.State.Documents.Khatian
	assert.Len(t, khatian.SA.Files, 1)
	assert.Empty(t, khatian.CS.Files)
	assert.Empty(t, khatian.RS.Files)
	assert.Empty(t, khatian.BRS.Files)
	assert.Empty(t, khatian.BS.Files)
}

func TestGeocodeResolvesAndFailsSoftly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.svc.Create("u1")
	_, err := f.svc.Apply("u1", view.ID, func(w *wizard.Wizard) error { return w.SetAddress("Dhanmondi, Dhaka") })
	require.NoError(t, err)

	dhanmondi := geocode.Coordinates{Lat: 23.7465, Lng: 90.3760}
	gomock.InOrder(
		f.geocoder.EXPECT().Geocode(gomock.Any(), "Dhanmondi, Dhaka").Return(dhanmondi, nil),
		f.geocoder.EXPECT().Geocode(gomock.Any(), "Dhanmondi, Dhaka").Return(geocode.Coordinates{}, geocode.ErrNoMatch),
	)

	mv, err := f.svc.Geocode(ctx, "u1", view.ID)
	require.NoError(t, err)
	assert.True(t, mv.Pin.Resolved)
	assert.Equal(t, dhanmondi, mv.Position)

	mv, err = f.svc.Geocode(ctx, "u1", view.ID)
	require.NoError(t, err)
	assert.False(t, mv.Pin.Resolved)
	assert.Equal(t, dhanmondi, mv.Position, "failed lookup keeps the previous position")
	assert.Equal(t, geocode.ErrNoMatch.Error(), mv.Pin.LastError)
}

func TestGeocodeWithoutGeocoder(t *testing.T) {
	f := newFixture(t)
	f.svc.geocoder = nil
	view := f.svc.Create("u1")

	mv, err := f.svc.Geocode(context.Background(), "u1", view.ID)
	require.NoError(t, err)
	assert.False(t, mv.Pin.Resolved)
	assert.Equal(t, ErrGeocoderDisabled.Error(), mv.Pin.LastError)
	assert.Equal(t, geocode.Dhaka, mv.Position)
}

func TestMovePinOverridesUntilNextGeocode(t *testing.T) {
	f := newFixture(t)
	view := f.svc.Create("u1")

	_, err := f.svc.MovePin("u1", view.ID, geocode.Coordinates{Lat: 123, Lng: 0})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	manual := geocode.Coordinates{Lat: 22.3569, Lng: 91.7832}
	mv, err := f.svc.MovePin("u1", view.ID, manual)
	require.NoError(t, err)
	assert.Equal(t, manual, mv.Position)

	geocoded := geocode.Coordinates{Lat: 23.8, Lng: 90.4}
	f.geocoder.EXPECT().Geocode(gomock.Any(), gomock.Any()).Return(geocoded, nil)
	mv, err = f.svc.Geocode(context.Background(), "u1", view.ID)
	require.NoError(t, err)
	assert.Equal(t, geocoded, mv.Position)
	assert.Nil(t, mv.Pin.Override)
}

func TestSaveAndResumeDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.svc.Create("u1")
	setTypes(t, f, "u1", view.ID)
	_, err := f.svc.Upload(ctx, "u1", view.ID, wizard.MoujaMap, []storage.Upload{fileUpload("map.pdf", pdfBytes)})
	require.NoError(t, err)
	_, err = f.svc.Apply("u1", view.ID, func(w *wizard.Wizard) error { return w.GoNext() })
	require.NoError(t, err)
	pin := geocode.Coordinates{Lat: 24.0, Lng: 90.0}
	_, err = f.svc.MovePin("u1", view.ID, pin)
	require.NoError(t, err)

	first, err := f.svc.SaveDraft(ctx, "u1", view.ID)
	require.NoError(t, err)
	second, err := f.svc.SaveDraft(ctx, "u1", view.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "saving again overwrites the same draft")
	assert.Equal(t, 1, second.FileCount)
	assert.Equal(t, 2, second.CurrentStep)

	list, err := f.svc.ListDrafts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.svc.ResumeDraft(ctx, "u2", first.ID)
	assert.ErrorIs(t, err, drafts.ErrNotFound)

	resumed, err := f.svc.ResumeDraft(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.NotEqual(t, view.ID, resumed.ID)
	assert.Equal(t, first.ID, resumed.DraftID)
	assert.Equal(t, 2, resumed.CurrentStep)
	assert.Equal(t, wizard.PropertyApartment, resumed.State.PropertyType)
	assert.Len(t, resumed.State.Documents.MoujaMap.Files, 1)
	assert.Equal(t, pin, resumed.Map.Position)
}

func TestDeleteDraftChecksOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.svc.Create("u1")
	summary, err := f.svc.SaveDraft(ctx, "u1", view.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteDraft(ctx, "u2", summary.ID), drafts.ErrNotFound)
	require.NoError(t, f.svc.DeleteDraft(ctx, "u1", summary.ID))
	_, err = f.drafts.Get(ctx, summary.ID)
	assert.ErrorIs(t, err, drafts.ErrNotFound)
}

func TestSubmitPersistsAndDeletesDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.svc.Create("u1")
	setTypes(t, f, "u1", view.ID)

	_, err := f.svc.Submit(ctx, "u1", view.ID)
	assert.ErrorIs(t, err, wizard.ErrNotAtFinalStep)

	summary, err := f.svc.SaveDraft(ctx, "u1", view.ID)
	require.NoError(t, err)
	goToLastStep(t, f, "u1", view.ID)

	rec, err := f.svc.Submit(ctx, "u1", view.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ID)
	require.Len(t, f.records.created, 1)
	assert.Equal(t, "u1", f.records.created[0].OwnerID)
	assert.Equal(t, wizard.PropertyApartment, f.records.created[0].State.PropertyType)

	_, err = f.svc.Get("u1", view.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.drafts.Get(ctx, summary.ID)
	assert.ErrorIs(t, err, drafts.ErrNotFound)
}

func TestSubmitFailureKeepsSessionOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.svc.Create("u1")
	setTypes(t, f, "u1", view.ID)
	goToLastStep(t, f, "u1", view.ID)

	f.records.err = errors.New("mongo down")
	_, err := f.svc.Submit(ctx, "u1", view.ID)
	require.Error(t, err)

	current, err := f.svc.Get("u1", view.ID)
	require.NoError(t, err)
	assert.False(t, current.Closed)

	f.records.err = nil
	_, err = f.svc.Submit(ctx, "u1", view.ID)
	require.NoError(t, err)
}

func TestDiscardKeepsBlobsReferencedByDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.svc.Create("u1")

	_, err := f.svc.Upload(ctx, "u1", view.ID, wizard.DolilAgreements, []storage.Upload{fileUpload("saved.pdf", pdfBytes)})
	require.NoError(t, err)
	_, err = f.svc.SaveDraft(ctx, "u1", view.ID)
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, "u1", view.ID, wizard.DCR, []storage.Upload{fileUpload("unsaved.pdf", pdfBytes)})
	require.NoError(t, err)
	require.Equal(t, 2, f.blobs.Len())

	assert.ErrorIs(t, f.svc.Discard(ctx, "u2", view.ID), ErrForbidden)
	require.NoError(t, f.svc.Discard(ctx, "u1", view.ID))
	assert.Equal(t, 1, f.blobs.Len())

	_, err = f.svc.Get("u1", view.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredSessionReleasesBlobs(t *testing.T) {
	f := newFixture(t)
	view := f.svc.Create("u1")
	_, err := f.svc.Upload(context.Background(), "u1", view.ID, wizard.Khajna, []storage.Upload{fileUpload("receipt.pdf", pdfBytes)})
	require.NoError(t, err)
	require.Equal(t, 1, f.blobs.Len())

	f.clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, f.store.Sweep())
	assert.Zero(t, f.blobs.Len())
}

func TestDiscardKeepsBlobsOfSubmittedRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.svc.Create("u1")
	setTypes(t, f, "u1", first.ID)
	up, err := f.svc.Upload(ctx, "u1", first.ID, wizard.DolilAgreements, []storage.Upload{fileUpload("deed.pdf", pdfBytes)})
	require.NoError(t, err)
	deedKey := up.Accepted[0].ObjectKey
	summary, err := f.svc.SaveDraft(ctx, "u1", first.ID)
	require.NoError(t, err)

	second, err := f.svc.ResumeDraft(ctx, "u1", summary.ID)
	require.NoError(t, err)
	goToLastStep(t, f, "u1", second.ID)
	rec, err := f.svc.Submit(ctx, "u1", second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{deedKey}, f.records.created[0].State.ObjectKeys())

	extra, err := f.svc.Upload(ctx, "u1", first.ID, wizard.DCR, []storage.Upload{fileUpload("dcr.pdf", pdfBytes)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Discard(ctx, "u1", first.ID))

	_, _, ok := f.blobs.Object(deedKey)
	assert.True(t, ok, "record %s still points at the deed", rec.ID)
	_, _, ok = f.blobs.Object(extra.Accepted[0].ObjectKey)
	assert.False(t, ok, "files only the discarded session had are deleted")
}

func TestExpiredSiblingKeepsBlobsOfSubmittedRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.svc.Create("u1")
	setTypes(t, f, "u1", first.ID)
	up, err := f.svc.Upload(ctx, "u1", first.ID, wizard.Khajna, []storage.Upload{fileUpload("receipt.pdf", pdfBytes)})
	require.NoError(t, err)
	summary, err := f.svc.SaveDraft(ctx, "u1", first.ID)
	require.NoError(t, err)

	f.clock.Advance(45 * time.Minute)
	second, err := f.svc.ResumeDraft(ctx, "u1", summary.ID)
	require.NoError(t, err)
	goToLastStep(t, f, "u1", second.ID)
	_, err = f.svc.Submit(ctx, "u1", second.ID)
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, f.store.Sweep())
	_, _, ok := f.blobs.Object(up.Accepted[0].ObjectKey)
	assert.True(t, ok)
}

func TestDeleteDraftReleasesBlobsOnlyItHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.svc.Create("u1")
	_, err := f.svc.Upload(ctx, "u1", view.ID, wizard.MoujaMap, []storage.Upload{fileUpload("map.pdf", pdfBytes)})
	require.NoError(t, err)
	summary, err := f.svc.SaveDraft(ctx, "u1", view.ID)
	require.NoError(t, err)

	// The draft alone now holds the map.
	require.NoError(t, f.svc.Discard(ctx, "u1", view.ID))
	require.Equal(t, 1, f.blobs.Len())

	resumed, err := f.svc.ResumeDraft(ctx, "u1", summary.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteDraft(ctx, "u1", summary.ID))
	assert.Equal(t, 1, f.blobs.Len(), "the resumed session still shows the map")

	require.NoError(t, f.svc.Discard(ctx, "u1", resumed.ID))
	assert.Zero(t, f.blobs.Len())
}

func TestDeleteDraftWithoutLiveSessionDeletesBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.svc.Create("u1")
	_, err := f.svc.Upload(ctx, "u1", view.ID, wizard.BayaDeed, []storage.Upload{fileUpload("baya.pdf", pdfBytes)})
	require.NoError(t, err)
	summary, err := f.svc.SaveDraft(ctx, "u1", view.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Discard(ctx, "u1", view.ID))
	require.Equal(t, 1, f.blobs.Len())

	require.NoError(t, f.svc.DeleteDraft(ctx, "u1", summary.ID))
	assert.Zero(t, f.blobs.Len())
}

func TestSweepOrphansReclaimsExpiredDraftBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	abandoned := f.svc.Create("u1")
	up, err := f.svc.Upload(ctx, "u1", abandoned.ID, wizard.DCR, []storage.Upload{fileUpload("dcr.pdf", pdfBytes)})
	require.NoError(t, err)
	orphanKey := up.Accepted[0].ObjectKey
	summary, err := f.svc.SaveDraft(ctx, "u1", abandoned.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Discard(ctx, "u1", abandoned.ID))
	// Stands in for the draft reaching its expiry.
	require.NoError(t, f.drafts.Delete(ctx, summary.ID))

	submitted := f.svc.Create("u1")
	setTypes(t, f, "u1", submitted.ID)
	up, err = f.svc.Upload(ctx, "u1", submitted.ID, wizard.DolilAgreements, []storage.Upload{fileUpload("deed.pdf", pdfBytes)})
	require.NoError(t, err)
	recordKey := up.Accepted[0].ObjectKey
	goToLastStep(t, f, "u1", submitted.ID)
	_, err = f.svc.Submit(ctx, "u1", submitted.ID)
	require.NoError(t, err)

	open := f.svc.Create("u2")
	up, err = f.svc.Upload(ctx, "u2", open.ID, wizard.Khajna, []storage.Upload{fileUpload("khajna.pdf", pdfBytes)})
	require.NoError(t, err)
	liveKey := up.Accepted[0].ObjectKey

	deleted, err := f.svc.SweepOrphans(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted, "blobs younger than the cutoff are left alone")

	deleted, err = f.svc.SweepOrphans(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	_, _, ok := f.blobs.Object(orphanKey)
	assert.False(t, ok)
	_, _, ok = f.blobs.Object(recordKey)
	assert.True(t, ok)
	_, _, ok = f.blobs.Object(liveKey)
	assert.True(t, ok)
}

func TestPossessionToggleKeepsPhotos(t *testing.T) {
	f := newFixture(t)
	view := f.svc.Create("u1")
	_, err := f.svc.Apply("u1", view.ID, func(w *wizard.Wizard) error { return w.SetPossessionFlag(true) })
	require.NoError(t, err)
	_, err = f.svc.Upload(context.Background(), "u1", view.ID, wizard.PossessionPhotos, []storage.Upload{fileUpload("site.pdf", pdfBytes)})
	require.NoError(t, err)

	off, err := f.svc.Apply("u1", view.ID, func(w *wizard.Wizard) error { return w.SetPossessionFlag(false) })
	require.NoError(t, err)
	assert.False(t, off.State.Documents.Possession.HasPossession)
	assert.Len(t, off.State.Documents.Possession.Photos.Files, 1)
}
