package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisebox-backend/internal/wizard"
)

func TestEmbeddedCatalogMatchesWizardEnums(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	tables := c.Tables()
	require.Len(t, tables.PropertyTypes, len(wizard.PropertyTypes()))
	for i, pt := range wizard.PropertyTypes() {
		assert.Equal(t, string(pt), tables.PropertyTypes[i].Value)
	}
	require.Len(t, tables.OwnershipTypes, len(wizard.OwnershipTypes()))
	for i, ot := range wizard.OwnershipTypes() {
		assert.Equal(t, string(ot), tables.OwnershipTypes[i].Value)
	}
	require.Len(t, tables.SizeUnits, len(wizard.SizeUnits()))
	for i, unit := range wizard.SizeUnits() {
		assert.Equal(t, string(unit), tables.SizeUnits[i])
	}
	require.Len(t, tables.DocumentCategories, len(wizard.DocumentCategories()))
	for i, cat := range wizard.DocumentCategories() {
		assert.Equal(t, string(cat), tables.DocumentCategories[i].Value)
	}
	require.Len(t, tables.SurveyTypes, len(wizard.SurveyTypes()))
	for i, survey := range wizard.SurveyTypes() {
		assert.Equal(t, string(survey), tables.SurveyTypes[i].Value)
	}
}

func TestParseRejectsTablesThatDriftFromWizard(t *testing.T) {
	valid := string(rawCatalog)
	_, err := Parse([]byte(valid))
	require.NoError(t, err)

	cases := map[string][2]string{
		"missing property type": {"  - value: commercial\n    label: Commercial\n", ""},
		"unknown property type": {"value: commercial", "value: castle"},
		"renamed size unit":     {"  - Sq Ft\n", "  - Square Feet\n"},
		"missing survey":        {"  - value: bs\n    label: BS (Boundary Survey)\n", ""},
		"extra category":        {"  - value: digital-scan\n", "  - value: digital-scan\n    label: Digital Scan\n  - value: fax\n"},
	}
	for name, edit := range cases {
		require.Contains(t, valid, edit[0], name)
		_, err := Parse([]byte(strings.Replace(valid, edit[0], edit[1], 1)))
		assert.ErrorContains(t, err, "the wizard accepts", name)
	}
}

func TestTimeSlots(t *testing.T) {
	c := MustLoad()
	slots := c.TimeSlots()
	require.Len(t, slots, 18)
	assert.Equal(t, "09:00", slots[0])
	assert.Equal(t, "09:30", slots[1])
	assert.Equal(t, "17:30", slots[len(slots)-1])
	assert.NotContains(t, slots, "18:00")
}

func TestServices(t *testing.T) {
	c := MustLoad()
	services := c.Services()
	require.Len(t, services, 8)

	free, err := c.Service("general_15")
	require.NoError(t, err)
	assert.True(t, free.Free())
	assert.Equal(t, 15, free.Duration)

	legal, err := c.Service("legal_advice")
	require.NoError(t, err)
	assert.False(t, legal.Free())
	assert.Equal(t, 45, legal.Duration)
	assert.Equal(t, 50, legal.Price)

	_, err = c.Service("astrology")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestAccessorsReturnCopies(t *testing.T) {
	c := MustLoad()
	services := c.Services()
	services[0].Name = "changed"
	slots := c.TimeSlots()
	slots[0] = "00:00"

	assert.Equal(t, "General Consultation", c.Services()[0].Name)
	assert.Equal(t, "09:00", c.TimeSlots()[0])
}

func TestDocumentTypesCarryExpiry(t *testing.T) {
	expiry := map[string]bool{}
	for _, dt := range MustLoad().Tables().DocumentTypes {
		expiry[dt.Value] = dt.HasExpiry
	}
	assert.True(t, expiry["khajna"])
	assert.False(t, expiry["deed"])
	assert.NotContains(t, expiry, "passport")
}

func TestParseRejectsBrokenCatalogs(t *testing.T) {
	cases := map[string]string{
		"bad yaml":          "propertyTypes: [",
		"bad hours":         "consultationHours: {start: '9am', end: '17:00', stepMinutes: 30}",
		"zero step":         "consultationHours: {start: '09:00', end: '17:00', stepMinutes: 0}",
		"duplicate service": "consultationHours: {start: '09:00', end: '10:00', stepMinutes: 30}\nconsultationServices: [{id: a, duration: 10}, {id: a, duration: 10}]",
		"zero duration":     "consultationHours: {start: '09:00', end: '10:00', stepMinutes: 30}\nconsultationServices: [{id: a, duration: 0}]",
	}
	for name, raw := range cases {
		_, err := Parse([]byte(raw))
		assert.Error(t, err, name)
	}
}

type memoryCache struct {
	data map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memoryCache) DeletePrefix(_ context.Context, _ string) error {
	return nil
}

func TestHandlerServesAndCachesTables(t *testing.T) {
	store := &memoryCache{data: map[string][]byte{}}
	h := NewHandler(MustLoad(), store, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body Tables
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.ConsultationServices, 8)
	assert.Len(t, body.TimeSlots, 18)
	assert.Contains(t, store.data, cacheKey)

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(store.data[cacheKey]), rec.Body.String())
}
