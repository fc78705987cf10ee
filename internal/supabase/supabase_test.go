package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"infraction-report-service/internal/domain/report"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, "anon-key", "service-key")
}

func TestOwnerDirectory_FindByPlate(t *testing.T) {
	var gotPath, gotPlate, gotSelect, gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPlate = r.URL.Query().Get("placa")
		gotSelect = r.URL.Query().Get("select")
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"propietario_id":7,"email":"owner@example.com","nombre_completo":"Ana Ruiz"}]`))
	}))
	defer srv.Close()

	dir := NewOwnerDirectory(newTestClient(srv), time.Second)
	owners, err := dir.FindByPlate(context.Background(), "PBC1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/rest/v1/reporte_datos_view" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPlate != "eq.PBC1234" || gotSelect != "propietario_id,email,nombre_completo" {
		t.Errorf("query placa=%q select=%q", gotPlate, gotSelect)
	}
	if gotKey != "anon-key" || gotAuth != "Bearer anon-key" {
		t.Errorf("reads must use the anon key, got apikey=%q auth=%q", gotKey, gotAuth)
	}
	if len(owners) != 1 || owners[0].OwnerID == nil || *owners[0].OwnerID != 7 {
		t.Fatalf("unexpected owners: %+v", owners)
	}
	if owners[0].Email != "owner@example.com" || owners[0].FullName != "Ana Ruiz" {
		t.Fatalf("unexpected owner: %+v", owners[0])
	}
}

func TestOwnerDirectory_NotFoundVsError(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`{"message":"permission denied"}`))
	}))
	defer srv.Close()

	dir := NewOwnerDirectory(newTestClient(srv), time.Second)

	owners, err := dir.FindByPlate(context.Background(), "XYZ")
	if err != nil || owners == nil || len(owners) != 0 {
		t.Fatalf("not found should be empty and nil error, got %v, %v", owners, err)
	}

	status = http.StatusUnauthorized
	owners, err = dir.FindByPlate(context.Background(), "XYZ")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected APIError 401, got %v", err)
	}
	if owners != nil {
		t.Fatalf("expected nil owners on error, got %v", owners)
	}
}

func TestOwnerDirectory_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	dir := NewOwnerDirectory(newTestClient(srv), 50*time.Millisecond)
	start := time.Now()
	if _, err := dir.FindByPlate(context.Background(), "ABC"); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("lookup did not honour its timeout")
	}
}

func TestEvidenceStore_Upload(t *testing.T) {
	var gotPath, gotKey, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"Key":"reportes-evidencia/x"}`))
	}))
	defer srv.Close()

	store := NewEvidenceStore(newTestClient(srv))
	content := []byte("\x89PNG\r\n\x1a\n0000")
	publicURL, err := store.Upload(context.Background(), content, "PBC1234_1700000000_placa.jpg", "reportes-evidencia")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/storage/v1/object/reportes-evidencia/PBC1234_1700000000_placa.jpg" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "service-key" {
		t.Errorf("uploads must use the service key, got %q", gotKey)
	}
	if gotType != "image/png" {
		t.Errorf("content type = %q", gotType)
	}
	if string(gotBody) != string(content) {
		t.Errorf("body not forwarded")
	}
	want := srv.URL + "/storage/v1/object/public/reportes-evidencia/PBC1234_1700000000_placa.jpg"
	if publicURL != want {
		t.Errorf("public URL = %q, want %q", publicURL, want)
	}
}

func TestEvidenceStore_UploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"Duplicate"}`))
	}))
	defer srv.Close()

	store := NewEvidenceStore(newTestClient(srv))
	url, err := store.Upload(context.Background(), []byte("x"), "a.jpg", "bucket")
	if err == nil || url != "" {
		t.Fatalf("expected failure, got url=%q err=%v", url, err)
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor([]byte("not an image")); got != "image/jpeg" {
		t.Fatalf("fallback = %q", got)
	}
	if got := contentTypeFor([]byte("\xff\xd8\xff\xe0")); got != "image/jpeg" {
		t.Fatalf("jpeg = %q", got)
	}
}

func TestReportLedger_Insert(t *testing.T) {
	var gotMethod, gotKey, gotPrefer string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotKey = r.Header.Get("apikey")
		gotPrefer = r.Header.Get("Prefer")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ledger := NewReportLedger(newTestClient(srv))
	err := ledger.Insert(context.Background(), report.InfractionReport{
		DetectedPlate:         report.UndetectedPlate,
		Description:           "parked on sidewalk",
		PlateEvidenceURL:      "https://x/p.jpg",
		InfractionEvidenceURL: "https://x/i.jpg",
		OCRCandidates:         []string{"ignored"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost || gotKey != "service-key" || gotPrefer != "return=minimal" {
		t.Errorf("method=%s key=%s prefer=%s", gotMethod, gotKey, gotPrefer)
	}
	if v, ok := gotBody["propietario_id"]; !ok || v != nil {
		t.Errorf("propietario_id should be an explicit null, got %v (present=%v)", v, ok)
	}
	if gotBody["placa_detectada"] != report.UndetectedPlate || gotBody["url_foto_infraccion"] != "https://x/i.jpg" {
		t.Errorf("unexpected body: %v", gotBody)
	}
	if _, ok := gotBody["OCRCandidates"]; ok {
		t.Errorf("OCR candidates must not be sent to PostgREST")
	}
}

func TestReportLedger_ListAll(t *testing.T) {
	var gotSelect, gotOrder string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSelect = r.URL.Query().Get("select")
		gotOrder = r.URL.Query().Get("order")
		w.Write([]byte(`[
			{"id":2,"propietario_id":{"nombre_completo":"Ana Ruiz"},"placa_detectada":"PBC1234","descripcion":"d2","url_foto_placa":"p2","url_foto_infraccion":"i2","fecha_reporte":"2025-03-02T10:00:00.123456+00:00"},
			{"id":1,"propietario_id":null,"placa_detectada":"NO_DETECTADA","descripcion":"d1","url_foto_placa":"p1","url_foto_infraccion":"i1","fecha_reporte":"2025-03-01T10:00:00+00:00"}
		]`))
	}))
	defer srv.Close()

	reports, err := NewReportLedger(newTestClient(srv)).ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSelect != "*,propietario_id(nombre_completo)" || gotOrder != "fecha_reporte.desc" {
		t.Errorf("select=%q order=%q", gotSelect, gotOrder)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Owner == nil || reports[0].Owner.FullName != "Ana Ruiz" {
		t.Errorf("owner not embedded: %+v", reports[0])
	}
	if reports[1].Owner != nil {
		t.Errorf("expected nil owner, got %+v", reports[1].Owner)
	}
	if !reports[0].ReportedAt.After(reports[1].ReportedAt) {
		t.Errorf("timestamps not decoded")
	}
}

func TestReportLedger_ListAllEmptyAndError(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ledger := NewReportLedger(newTestClient(srv))
	reports, err := ledger.ListAll(context.Background())
	if err != nil || reports == nil || len(reports) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v, %v", reports, err)
	}

	fail = true
	if reports, err = ledger.ListAll(context.Background()); err == nil || reports != nil {
		t.Fatalf("expected error and nil slice, got %v, %v", reports, err)
	}
}
