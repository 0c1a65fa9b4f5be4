package drafts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisebox-backend/internal/geocode"
	"wisebox-backend/internal/wizard"
)

func TestInMemoryRepo(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	repo := NewInMemory(time.Hour).(*inMemoryRepo)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	st := wizard.NewState()
	st.PropertyDetails.Address = "Gulshan 2, Dhaka"
	pin := geocode.Pin{}
	pin.Resolve(geocode.Coordinates{Lat: 23.79, Lng: 90.41})

	first := &Draft{ID: "d1", UserID: "u1", State: st, CurrentStep: 6, Pin: pin}
	require.NoError(t, repo.Save(ctx, first))
	now = now.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, &Draft{ID: "d2", UserID: "u1", State: wizard.NewState(), CurrentStep: 1}))
	require.NoError(t, repo.Save(ctx, &Draft{ID: "d3", UserID: "u2", State: wizard.NewState(), CurrentStep: 1}))

	got, err := repo.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Gulshan 2, Dhaka", got.State.PropertyDetails.Address)
	assert.Equal(t, geocode.Coordinates{Lat: 23.79, Lng: 90.41}, got.Pin.Position())

	// Stored copies are isolated from the caller.
	got.State.PropertyDetails.Address = "changed"
	got.Pin.Geocoded.Lat = 0
	again, _ := repo.Get(ctx, "d1")
	assert.Equal(t, "Gulshan 2, Dhaka", again.State.PropertyDetails.Address)
	assert.Equal(t, 23.79, again.Pin.Geocoded.Lat)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "d2", list[0].ID)
	assert.Equal(t, "d1", list[1].ID)
	assert.Equal(t, Summary{ID: "d1", Address: "Gulshan 2, Dhaka", CurrentStep: 6, UpdatedAt: list[1].UpdatedAt}, list[1].Summary())

	require.NoError(t, repo.Delete(ctx, "d2"))
	assert.ErrorIs(t, repo.Delete(ctx, "d2"), ErrNotFound)

	now = now.Add(2 * time.Hour)
	_, err = repo.Get(ctx, "d1")
	assert.ErrorIs(t, err, ErrNotFound)
	list, err = repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInMemoryReferencedObjects(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	repo := NewInMemory(time.Hour).(*inMemoryRepo)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	st := wizard.NewState()
	st.Documents.DCR.Files = []wizard.File{{ID: "f1", ObjectKey: "wizard/s1/dcr/f1.pdf"}}
	require.NoError(t, repo.Save(ctx, &Draft{ID: "d1", UserID: "u1", State: st, CurrentStep: 2}))

	found, err := repo.ReferencedObjects(ctx, []string{"wizard/s1/dcr/f1.pdf", "wizard/s1/dcr/other.pdf"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"wizard/s1/dcr/f1.pdf": true}, found)

	now = now.Add(2 * time.Hour)
	found, err = repo.ReferencedObjects(ctx, []string{"wizard/s1/dcr/f1.pdf"})
	require.NoError(t, err)
	assert.Empty(t, found, "expired drafts hold no references")
}
