package propertyintake

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wisebox-backend/internal/geocode"
	"wisebox-backend/internal/middleware"
	"wisebox-backend/internal/properties"
	"wisebox-backend/internal/transport"
	"wisebox-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testUserHeader = "X-Test-User"

func newTestServer(t *testing.T, f *fixture) http.Handler {
	t.Helper()
	h := NewHandler(f.svc, validation.New(), discardLogger(), 1<<20)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := middleware.Principal{UserID: r.Header.Get(testUserHeader), Role: "user"}
			next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), p)))
		})
	})
	r.Mount("/wizard", h.Routes(nil))
	return r
}

func do(t *testing.T, srv http.Handler, user, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(testUserHeader, user)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, srv http.Handler, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = http.NoBody
	}
	return do(t, srv, user, method, path, reader, "application/json")
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) View {
	t.Helper()
	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestHandlerWizardFlow(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)

	rec := doJSON(t, srv, "u1", http.MethodPost, "/wizard/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decodeView(t, rec)
	base := "/wizard/sessions/" + view.ID

	rec = doJSON(t, srv, "u1", http.MethodPost, base+"/next", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var gateErr transport.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gateErr))
	assert.Equal(t, "step_incomplete", gateErr.Code)
	assert.Equal(t, map[string]string{"propertyType": "required", "ownershipType": "required"}, gateErr.Details)

	rec = doJSON(t, srv, "u1", http.MethodPut, base+"/property-type", `{"value":"castle"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, srv, "u1", http.MethodPut, base+"/property-type", `{"value":"land"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, "u1", http.MethodPut, base+"/ownership-type", `{"value":"personal"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body, ct := multipartBody(t, map[string][]byte{"cs-khatian.pdf": pdfBytes})
	rec = do(t, srv, "u1", http.MethodPost, base+"/documents/khatian.cs/files", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var upload UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upload))
	assert.Len(t, upload.Accepted, 1)
	assert.Empty(t, upload.Rejected)
	assert.Len(t, upload.Session.State.Documents.Khatian.CS.Files, 1)

	rec = doJSON(t, srv, "u1", http.MethodPatch, base+"/documents/khatian.cs", `{"field":"category","value":"certified-copy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "certified-copy", string(decodeView(t, rec).State.Documents.Khatian.CS.Category))

	rec = doJSON(t, srv, "u1", http.MethodPost, base+"/sellers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, "u1", http.MethodPatch, base+"/sellers/1", `{"field":"name","value":"Rahim Uddin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sellers := decodeView(t, rec).State.PropertyDetails.Sellers
	require.Len(t, sellers, 2)
	assert.Equal(t, "Rahim Uddin", sellers[1].Name)
	rec = doJSON(t, srv, "u1", http.MethodPatch, base+"/sellers/5", `{"field":"name","value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for i := 0; i < 5; i++ {
		rec = doJSON(t, srv, "u1", http.MethodPost, base+"/next", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 6, decodeView(t, rec).CurrentStep)

	rec = doJSON(t, srv, "u1", http.MethodPost, base+"/next", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var terminal transport.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &terminal))
	assert.Equal(t, "terminal_step", terminal.Code)

	rec = doJSON(t, srv, "u1", http.MethodPost, base+"/submit", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var submitted map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	assert.Equal(t, "p1", submitted["id"])

	rec = doJSON(t, srv, "u1", http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRejectsUnknownSlot(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)
	view := f.svc.Create("u1")

	body, ct := multipartBody(t, map[string][]byte{"a.pdf": pdfBytes})
	rec := do(t, srv, "u1", http.MethodPost, "/wizard/sessions/"+view.ID+"/documents/khatian.xx/files", body, ct)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp transport.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_slot", resp.Code)

	rec = doJSON(t, srv, "u1", http.MethodPatch, "/wizard/sessions/"+view.ID+"/documents/deeds", `{"field":"title","value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerUploadWithoutFiles(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)
	view := f.svc.Create("u1")

	body, ct := multipartBody(t, nil)
	rec := do(t, srv, "u1", http.MethodPost, "/wizard/sessions/"+view.ID+"/documents/dcr/files", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerOwnerCheck(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)
	view := f.svc.Create("u1")

	rec := doJSON(t, srv, "u2", http.MethodGet, "/wizard/sessions/"+view.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, srv, "u1", http.MethodGet, "/wizard/sessions/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerDetailsGeocodesAddress(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)
	view := f.svc.Create("u1")

	gulshan := geocode.Coordinates{Lat: 23.7925, Lng: 90.4078}
	f.geocoder.EXPECT().Geocode(gomock.Any(), "Gulshan 2, Dhaka").Return(gulshan, nil)

	rec := doJSON(t, srv, "u1", http.MethodPatch, "/wizard/sessions/"+view.ID+"/details",
		`{"size":{"value":"5","unit":"Katha"},"valuation":"2500000","purchaseDate":"2019-04-01","address":"Gulshan 2, Dhaka"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeView(t, rec)
	assert.Equal(t, "5", got.State.PropertyDetails.Size.Value)
	assert.Equal(t, "2500000", got.State.PropertyDetails.Valuation)
	assert.True(t, got.Map.Pin.Resolved)
	assert.Equal(t, gulshan, got.Map.Position)

	rec = doJSON(t, srv, "u1", http.MethodPatch, "/wizard/sessions/"+view.ID+"/details", `{"purchaseDate":"01/04/2019"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, srv, "u1", http.MethodPatch, "/wizard/sessions/"+view.ID+"/details", `{"size":{"value":"5","unit":"Hectare"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerPinAndDrafts(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)
	view := f.svc.Create("u1")
	base := "/wizard/sessions/" + view.ID

	rec := doJSON(t, srv, "u1", http.MethodPut, base+"/pin", `{"lat":23.7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, srv, "u1", http.MethodPut, base+"/pin", `{"lat":23.7,"lng":90.39}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, "u1", http.MethodPost, base+"/draft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.NotEmpty(t, summary.ID)

	rec = doJSON(t, srv, "u1", http.MethodGet, "/wizard/drafts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), summary.ID)

	rec = doJSON(t, srv, "u2", http.MethodPost, "/wizard/drafts/"+summary.ID+"/resume", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, "u1", http.MethodPost, "/wizard/drafts/"+summary.ID+"/resume", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	resumed := decodeView(t, rec)
	assert.Equal(t, summary.ID, resumed.DraftID)
	assert.Equal(t, geocode.Coordinates{Lat: 23.7, Lng: 90.39}, resumed.Map.Position)

	rec = doJSON(t, srv, "u1", http.MethodDelete, "/wizard/drafts/"+summary.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, srv, "u1", http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type receiptRecorder struct {
	sent chan properties.Record
}

func (r *receiptRecorder) NotifyReceipt(_ context.Context, rec properties.Record) error {
	r.sent <- rec
	return nil
}

func TestHandlerSubmitSendsReceipt(t *testing.T) {
	f := newFixture(t)
	receipts := &receiptRecorder{sent: make(chan properties.Record, 1)}
	h := NewHandler(f.svc, validation.New(), discardLogger(), 1<<20).WithReceipts(receipts)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := middleware.Principal{UserID: "u1", Role: "user"}
			next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), p)))
		})
	})
	r.Mount("/wizard", h.Routes(nil))

	view := f.svc.Create("u1")
	setTypes(t, f, "u1", view.ID)
	goToLastStep(t, f, "u1", view.ID)

	rec := doJSON(t, r, "u1", http.MethodPost, "/wizard/sessions/"+view.ID+"/submit", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case sent := <-receipts.sent:
		assert.Equal(t, "u1", sent.OwnerID)
	case <-time.After(2 * time.Second):
		t.Fatal("receipt was not sent")
	}
}
