package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/testutil"
	"github.com/yungbote/specimenhub-backend/internal/data/warehouse"
	"github.com/yungbote/specimenhub-backend/internal/handlers"
	"github.com/yungbote/specimenhub-backend/internal/server"
)

func newTestRouter(t *testing.T) (*gin.Engine, session.Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	sess := testutil.Session(t, gdb)
	wh := warehouse.New(warehouse.Deps{Log: log})

	router := server.NewRouter(server.RouterConfig{
		HealthHandler:     handlers.NewHealthHandler(gdb),
		IdentifierHandler: handlers.NewIdentifierHandler(log, wh, sess),
		SampleHandler:     handlers.NewSampleHandler(log, wh, sess),
		Mode:              "release",
	})
	return router, sess
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthcheck(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthcheck", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthcheck response %d %q", rec.Code, rec.Body.String())
	}
}

func TestMintEndpoint(t *testing.T) {
	router, sess := newTestRouter(t)
	testutil.SeedIdentifierSet(t, sess.DB(), "kits", "kit barcodes")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/identifier-sets/kits/identifiers", `{"count": 3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Identifiers []struct {
			UUID    string `json:"uuid"`
			Barcode string `json:"barcode"`
		} `json:"identifiers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Identifiers) != 3 {
		t.Fatalf("expected 3 identifiers, got %d", len(resp.Identifiers))
	}
	if resp.Identifiers[0].Barcode == "" || resp.Identifiers[0].UUID == "" {
		t.Fatalf("identifier missing barcode or uuid: %+v", resp.Identifiers[0])
	}
}

func TestMintEndpoint_UnknownSet(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/identifier-sets/nope/identifiers", `{"count": 1}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope handlers.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != "identifier_set_not_found" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
}

func TestMintEndpoint_RejectsBadCount(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, body := range []string{`{}`, `{"count": 0}`, `{"count": -5}`} {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/identifier-sets/kits/identifiers", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestVerifyBarcodeEndpoint(t *testing.T) {
	router, sess := newTestRouter(t)
	testutil.SeedIdentifierSet(t, sess.DB(), "kits", "kit barcodes")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/identifier-sets/kits/identifiers", `{"count": 1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("mint failed: %d %s", rec.Code, rec.Body.String())
	}
	var minted struct {
		Identifiers []struct {
			Barcode string `json:"barcode"`
		} `json:"identifiers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &minted); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/barcodes/"+minted.Identifiers[0].Barcode, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var record struct {
		SetName string `json:"set_name"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.SetName != "kits" {
		t.Fatalf("unexpected set name %q", record.SetName)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/barcodes/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown barcode, got %d", rec.Code)
	}
}

func TestUpsertSampleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/samples",
		`{"identifier": "S-100", "details": {"note": "first"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/samples",
		`{"identifier": "S-100", "details": {"volume_ml": 2}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
		Sample struct {
			Details map[string]any `json:"details"`
		} `json:"sample"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "updated" {
		t.Fatalf("expected updated, got %q", resp.Status)
	}
	if resp.Sample.Details["note"] != "first" || resp.Sample.Details["volume_ml"] != float64(2) {
		t.Fatalf("details not merged: %v", resp.Sample.Details)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/samples", `{"details": {"x": 1}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without identifiers, got %d", rec.Code)
	}
}

func TestListIdentifierSetsEndpoint(t *testing.T) {
	router, sess := newTestRouter(t)
	testutil.SeedIdentifierSet(t, sess.DB(), "samples", "aliquot tubes")
	testutil.SeedIdentifierSet(t, sess.DB(), "collections", "collection kits")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/identifier-sets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		IdentifierSets []struct {
			Name string `json:"name"`
		} `json:"identifier_sets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.IdentifierSets) != 2 || resp.IdentifierSets[0].Name != "collections" {
		t.Fatalf("unexpected sets %+v", resp.IdentifierSets)
	}
}
