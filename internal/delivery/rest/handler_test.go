package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/infrastructure/metrics"
)

type fakeImports struct {
	body   []byte
	meta   map[string]string
	jobs   map[string]*entity.Job
	filter entity.JobFilter
	fail   error
}

func (f *fakeImports) SubmitImport(ctx context.Context, raw []byte, metadata map[string]string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.body, f.meta = raw, metadata
	return "job-1", nil
}

func (f *fakeImports) GetJob(ctx context.Context, id string) (*entity.Job, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	return nil, apperror.ErrJobNotFound
}

func (f *fakeImports) ListJobs(ctx context.Context, filter entity.JobFilter) ([]*entity.Job, error) {
	f.filter = filter
	var out []*entity.Job
	for _, job := range f.jobs {
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeImports) CancelJob(ctx context.Context, id string) (*entity.Job, error) {
	job, err := f.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, apperror.ErrNotCancellable
	}
	job.CancelRequested = true
	return job, nil
}

func (f *fakeImports) ExportReport(ctx context.Context, id string) ([]byte, string, error) {
	if _, err := f.GetJob(ctx, id); err != nil {
		return nil, "", err
	}
	return []byte("PK"), "import_" + id + ".xlsx", nil
}

func (f *fakeImports) CheckStorage(ctx context.Context) (entity.StorageSize, entity.StorageStatus, error) {
	return entity.StorageSize{Bytes: 10, LimitBytes: 100, PercentOfLimit: 10}, entity.StorageOK, nil
}

func newTestServer() (http.Handler, *fakeImports) {
	imp := &fakeImports{jobs: map[string]*entity.Job{
		"done":    {ID: "done", Status: entity.JobCompleted, Progress: 100},
		"running": {ID: "running", Status: entity.JobProcessing, Progress: 30},
	}}
	return NewRouter(imp, metrics.New().Handler()), imp
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestSubmitImport(t *testing.T) {
	srv, imp := newTestServer()

	rec := do(srv, http.MethodPost, "/imports?file=feed.xml", "<offer/>")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "/imports/job-1", rec.Header().Get("Location"))
	assert.Equal(t, "<offer/>", string(imp.body))
	assert.Equal(t, "feed.xml", imp.meta["file"])

	rec = do(srv, http.MethodPost, "/imports", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	imp.fail = errors.New("store down")
	rec = do(srv, http.MethodPost, "/imports", "<offer/>")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetAndCancelJob(t *testing.T) {
	srv, _ := newTestServer()

	rec := do(srv, http.MethodGet, "/imports/done", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job entity.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, entity.JobCompleted, job.Status)

	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/imports/missing", "").Code)
	assert.Equal(t, http.StatusAccepted, do(srv, http.MethodDelete, "/imports/running", "").Code)
	assert.Equal(t, http.StatusConflict, do(srv, http.MethodDelete, "/imports/done", "").Code)
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodDelete, "/imports/missing", "").Code)
}

func TestListJobs(t *testing.T) {
	srv, imp := newTestServer()

	rec := do(srv, http.MethodGet, "/imports?status=completed&limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.JobCompleted, imp.filter.Status)
	assert.Equal(t, maxListLimit, imp.filter.Limit)

	var resp JobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodGet, "/imports?status=weird", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodGet, "/imports?limit=x", "").Code)
}

func TestExportReport(t *testing.T) {
	srv, _ := newTestServer()

	rec := do(srv, http.MethodGet, "/imports/done/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "import_done.xlsx")
	assert.Equal(t, "PK", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/imports/missing/report", "").Code)
}

func TestStorageHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer()

	rec := do(srv, http.MethodGet, "/storage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StorageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, entity.StorageOK, resp.Status)
	assert.Equal(t, int64(100), resp.LimitBytes)

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/health", "").Code)

	rec = do(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
