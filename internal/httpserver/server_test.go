package httpserver

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/onuwatch/internal/duckdb"
	"github.com/tinytelemetry/onuwatch/internal/ingest"
	"github.com/tinytelemetry/onuwatch/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const report = "Cliente;SN ONU;OLT;Status;Última Alteração de Status\n" +
	"Ana;ZTEG001;OLT-LDB-HUAWEI-DC;LOSS;10/01/2024 08:00\n" +
	"Caio;ZTEG003;OLT-MGF-ZTE-SERENITY-02;Sem Energia;11/01/2024 10:00\n"

var fixedNow = time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC)

type fakeUploader struct {
	err   error
	depth int
}

func (f *fakeUploader) Submit(_ context.Context, _, _ string, _ []byte) (model.Job, error) {
	if f.err != nil {
		return model.Job{}, f.err
	}
	return model.Job{ID: "job-fake", Status: model.JobPending}, nil
}

func (f *fakeUploader) QueueDepth() int { return f.depth }

func newTestStore(t *testing.T) *duckdb.Store {
	t.Helper()
	store, err := duckdb.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestServer(t *testing.T, store *duckdb.Store, uploads Uploader, conf ...Config) http.Handler {
	t.Helper()
	cfg := Config{Now: func() time.Time { return fixedNow }}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	return NewServer("", store, uploads, cfg).Handler()
}

func seedRecords(t *testing.T, store *duckdb.Store, n int) {
	t.Helper()
	rx := -27.5
	recs := make([]model.Record, n)
	for i := range recs {
		recs[i] = model.Record{
			ClientName:     fmt.Sprintf("Cliente %02d", i),
			Serial:         fmt.Sprintf("ZTEG%08d", i),
			Region:         fmt.Sprintf("OLT-LDB-HUAWEI-%d", i%2),
			HoursOffline:   50 + i,
			DisconnectedAt: fixedNow.Add(-time.Duration(50+i) * time.Hour),
			City:           "Londrina",
			Reason:         "LOSS",
			RxONU:          &rx,
			JobID:          "job-1",
		}
	}
	if _, err := store.UpsertRecords(context.Background(), recs); err != nil {
		t.Fatalf("UpsertRecords: %v", err)
	}
}

func do(r http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, field, filename string, contents []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(contents)
	mw.Close()
	return buf.Bytes(), mw.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func TestRootAndHealth(t *testing.T) {
	store := newTestStore(t)
	seedRecords(t, store, 3)
	for _, id := range []string{"job-a", "job-b"} {
		if err := store.CreateJob(context.Background(), model.Job{ID: id, FileName: id + ".csv", SizeKB: 1}); err != nil {
			t.Fatalf("CreateJob(%s): %v", id, err)
		}
	}
	r := newTestServer(t, store, &fakeUploader{depth: 2})

	w := do(r, http.MethodGet, "/", nil, "")
	var root map[string]any
	decode(t, w, &root)
	if w.Code != http.StatusOK || root["status"] != "API online" {
		t.Errorf("GET / = %d %v", w.Code, root)
	}

	w = do(r, http.MethodGet, "/api/health", nil, "")
	var health map[string]any
	decode(t, w, &health)
	if health["status"] != "ok" || health["record_count"] != float64(3) || health["queue_depth"] != float64(2) {
		t.Errorf("health = %v", health)
	}
	jobs, ok := health["jobs"].(map[string]any)
	if !ok || jobs["PENDING"] != float64(2) {
		t.Errorf("health jobs = %v, want PENDING=2", health["jobs"])
	}
}

func TestUpload_ProcessesAndReportsStatus(t *testing.T) {
	store := newTestStore(t)
	svc := ingest.NewService(store)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	r := newTestServer(t, store, svc)

	body, ct := multipartBody(t, "file", "relatorio.csv", []byte(report))
	w := do(r, http.MethodPost, "/upload", body, ct)
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}
	var accepted map[string]string
	decode(t, w, &accepted)
	id := accepted["relatorio_id"]
	if id == "" || accepted["message"] == "" {
		t.Fatalf("upload response = %v", accepted)
	}

	var job model.Job
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w = do(r, http.MethodGet, "/relatorios/status/"+id, nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("status code = %d", w.Code)
		}
		decode(t, w, &job)
		if job.Status.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != model.JobCompleted || job.Written != 2 {
		t.Fatalf("job = %+v, want COMPLETED with 2 rows written", job)
	}

	w = do(r, http.MethodGet, "/clients", nil, "")
	var page model.RecordPage
	decode(t, w, &page)
	if page.TotalCount != 2 || len(page.Records) != 2 {
		t.Errorf("clients = %+v", page)
	}

	w = do(r, http.MethodGet, "/relatorios?limit=5", nil, "")
	var jobs []model.Job
	decode(t, w, &jobs)
	if len(jobs) != 1 || jobs[0].ID != id {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestUpload_Rejections(t *testing.T) {
	store := newTestStore(t)
	svc := ingest.NewService(store)
	r := newTestServer(t, store, svc, Config{MaxUploadBytes: 1024, Now: func() time.Time { return fixedNow }})

	tests := []struct {
		name     string
		field    string
		filename string
		contents []byte
		want     int
		detail   string
	}{
		{"wrong extension", "file", "foto.png", []byte(report), http.StatusBadRequest, ingest.InvalidFormatDetail},
		{"empty file", "file", "vazio.csv", nil, http.StatusBadRequest, ingest.EmptyFileDetail},
		{"missing field", "arquivo", "relatorio.csv", []byte(report), http.StatusBadRequest, ""},
		{"too large", "file", "grande.csv", bytes.Repeat([]byte("a;b\n"), 1024), http.StatusRequestEntityTooLarge, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.field, tt.filename, tt.contents)
			w := do(r, http.MethodPost, "/upload", body, ct)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			var resp map[string]string
			decode(t, w, &resp)
			if resp["detail"] == "" {
				t.Error("missing detail")
			}
			if tt.detail != "" && resp["detail"] != tt.detail {
				t.Errorf("detail = %q, want %q", resp["detail"], tt.detail)
			}
		})
	}

	jobs, err := store.ListJobs(10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("rejected uploads created %d jobs", len(jobs))
	}
}

func TestUpload_QueueFull(t *testing.T) {
	r := newTestServer(t, newTestStore(t), &fakeUploader{err: ingest.ErrQueueFull})

	body, ct := multipartBody(t, "file", "relatorio.csv", []byte(report))
	w := do(r, http.MethodPost, "/upload", body, ct)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	r := newTestServer(t, newTestStore(t), &fakeUploader{})

	w := do(r, http.MethodGet, "/relatorios/status/does-not-exist", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp map[string]string
	decode(t, w, &resp)
	if resp["detail"] == "" {
		t.Error("missing detail")
	}
}

func TestClientBySerial(t *testing.T) {
	store := newTestStore(t)
	seedRecords(t, store, 2)
	r := newTestServer(t, store, &fakeUploader{})

	w := do(r, http.MethodGet, "/clients/ZTEG00000001", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var rec model.Record
	decode(t, w, &rec)
	if rec.Serial != "ZTEG00000001" || rec.ClientName != "Cliente 01" || rec.HoursOffline != 51 {
		t.Errorf("record = %+v", rec)
	}

	w = do(r, http.MethodGet, "/clients/ZTEG99999999", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing serial status = %d, want 404", w.Code)
	}

	// Static routes under /clients still win over the serial parameter.
	w = do(r, http.MethodGet, "/clients/export", nil, "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("export = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestClients_QueryParameters(t *testing.T) {
	store := newTestStore(t)
	seedRecords(t, store, 12)
	r := newTestServer(t, store, &fakeUploader{})

	tests := []struct {
		target    string
		wantCode  int
		wantTotal int64
		wantLen   int
		wantFirst string
	}{
		{"/clients", http.StatusOK, 12, 10, "ZTEG00000011"},
		{"/clients?page=2", http.StatusOK, 12, 2, "ZTEG00000001"},
		{"/clients?sort=serial_onu&direction=asc&page_size=3", http.StatusOK, 12, 3, "ZTEG00000000"},
		{"/clients?min_hours=60", http.StatusOK, 2, 2, "ZTEG00000011"},
		{"/clients?region=OLT-LDB-HUAWEI-0", http.StatusOK, 6, 6, "ZTEG00000010"},
		{"/clients?search=cliente%2003", http.StatusOK, 1, 1, "ZTEG00000003"},
		{"/clients?sort=1%3BDROP&direction=asc", http.StatusOK, 12, 10, "ZTEG00000011"},
		{"/clients?page=abc", http.StatusBadRequest, 0, 0, ""},
		{"/clients?direction=sideways", http.StatusBadRequest, 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.target, nil, "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var page model.RecordPage
			decode(t, w, &page)
			if page.TotalCount != tt.wantTotal || len(page.Records) != tt.wantLen {
				t.Fatalf("total=%d len=%d, want %d/%d", page.TotalCount, len(page.Records), tt.wantTotal, tt.wantLen)
			}
			if page.Records[0].Serial != tt.wantFirst {
				t.Errorf("first = %s, want %s", page.Records[0].Serial, tt.wantFirst)
			}
		})
	}
}

func TestExport_CSV(t *testing.T) {
	store := newTestStore(t)
	seedRecords(t, store, 3)
	r := newTestServer(t, store, &fakeUploader{})

	w := do(r, http.MethodGet, "/clients/export?min_hours=51", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "clientes_offline_2024-01-12.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(exportHeader, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "ZTEG00000002" || rows[1][5] != "52" || rows[1][8] != "-27.5" || rows[1][10] != "" {
		t.Errorf("first row = %v", rows[1])
	}
}

func TestDeleteClients(t *testing.T) {
	store := newTestStore(t)
	seedRecords(t, store, 4)
	r := newTestServer(t, store, &fakeUploader{})

	w := do(r, http.MethodDelete, "/clients", []byte(`{"ids":[]}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty ids status = %d, want 400", w.Code)
	}

	page, err := store.QueryRecords(model.RecordQuery{}.Normalize())
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	ids := fmt.Sprintf(`{"ids":[%d,%d]}`, page.Records[0].ID, page.Records[1].ID)
	w = do(r, http.MethodDelete, "/clients", []byte(ids), "application/json")
	var resp map[string]any
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp["deleted"] != float64(2) {
		t.Fatalf("delete = %d %v", w.Code, resp)
	}

	w = do(r, http.MethodDelete, "/clients/all", nil, "")
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp["deleted"] != float64(2) {
		t.Fatalf("delete all = %d %v", w.Code, resp)
	}
	if n, _ := store.TotalRecordCount(); n != 0 {
		t.Errorf("records left = %d", n)
	}
}

func TestStatsEndpoints(t *testing.T) {
	store := newTestStore(t)
	seedRecords(t, store, 4)
	r := newTestServer(t, store, &fakeUploader{})

	w := do(r, http.MethodGet, "/stats/regions", nil, "")
	var regions []model.LabelCount
	decode(t, w, &regions)
	if len(regions) != 2 || regions[0].Total != 2 {
		t.Errorf("regions = %+v", regions)
	}

	w = do(r, http.MethodGet, "/stats/cities", nil, "")
	var cities []model.LabelCount
	decode(t, w, &cities)
	if len(cities) != 1 || cities[0].Label != "Londrina" || cities[0].Total != 4 {
		t.Errorf("cities = %+v", cities)
	}

	w = do(r, http.MethodGet, "/stats/kpis", nil, "")
	var kpis model.KPISummary
	decode(t, w, &kpis)
	if kpis.Total != 4 || kpis.OldestCaseDays != 2 {
		t.Errorf("kpis = %+v", kpis)
	}

	w = do(r, http.MethodGet, "/regions", nil, "")
	var names []string
	decode(t, w, &names)
	if len(names) != 2 || names[0] != "OLT-LDB-HUAWEI-0" {
		t.Errorf("regions list = %v", names)
	}

	w = do(r, http.MethodGet, "/stats/history?days=x", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad days status = %d, want 400", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestServer(t, newTestStore(t), &fakeUploader{})

	w := do(r, http.MethodOptions, "/upload", nil, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
