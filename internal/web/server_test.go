package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/model"
	"github.com/gurneyalex/cubicweb-condor/internal/reconcile"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
)

type fakeCondor struct {
	mu      sync.Mutex
	removed []string
	queue   string
	ids     []string
}

func (f *fakeCondor) Status(ctx context.Context) condor.Result {
	return condor.Result{Output: "Name OpSys Arch State\nslot1@node <b>Linux</b>"}
}

func (f *fakeCondor) Queue(ctx context.Context) condor.Result {
	return condor.Result{Output: f.queue}
}

func (f *fakeCondor) Remove(ctx context.Context, jobID string) condor.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, jobID)
	return condor.Result{Output: "\nCluster " + jobID + " has been marked for removal.\n"}
}

func (f *fakeCondor) JobIDs(ctx context.Context) []string {
	return f.ids
}

func (f *fakeCondor) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

type fakeExecutions struct {
	states [][]string
}

func (f *fakeExecutions) List(ctx context.Context, states ...string) ([]model.Execution, error) {
	f.states = append(f.states, states)
	return []model.Execution{{ID: "e1", Name: "train", State: model.StateRunning}}, nil
}

type fakeReconciler struct {
	err      error
	runs     int
	lastPass time.Time
}

func (f *fakeReconciler) Run(ctx context.Context) (reconcile.Report, error) {
	f.runs++
	if f.err != nil {
		return reconcile.Report{}, f.err
	}
	return reconcile.Report{QueueEmpty: true, Suspicious: []string{"e1"}, Failed: []string{}}, nil
}

func (f *fakeReconciler) Candidates() []string { return []string{"e1"} }

func (f *fakeReconciler) LastPass() time.Time { return f.lastPass }

func newTestServer(t *testing.T, opts Options) (*Server, *fakeCondor) {
	t.Helper()
	fc := &fakeCondor{queue: "ID OWNER CMD\n12.0 alice <script>\n", ids: []string{"12.0"}}
	if opts.Condor == nil {
		opts.Condor = fc
	}
	opts.Log = &utils.RecordingLogger{}
	return NewServer(opts), fc
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJobsPage(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/?__message="+url.QueryEscape("Cluster 12 <removed>"), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	body := rec.Body.String()
	assert.Contains(t, body, `content="91; url=/"`)
	assert.Contains(t, body, "<h1>Condor information</h1>")
	for _, section := range []string{"Condor Queue", "Condor Remove", "Condor Status"} {
		assert.Contains(t, body, "<h2>"+section+"</h2>")
	}
	assert.Less(t, strings.Index(body, "Condor Queue"), strings.Index(body, "Condor Remove"))
	assert.Less(t, strings.Index(body, "Condor Remove"), strings.Index(body, "Condor Status"))
	assert.Contains(t, body, `name="condor_job_id"`)
	assert.Contains(t, body, "12.0 alice &lt;script&gt;")
	assert.Contains(t, body, "&lt;b&gt;Linux&lt;/b&gt;")
	assert.Contains(t, body, "Cluster 12 &lt;removed&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestUnknownPath(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveRedirects(t *testing.T) {
	s, fc := newTestServer(t, Options{})

	rec := postForm(s.Handler(), "/do_condor_remove", url.Values{"condor_job_id": {"12"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	assert.Equal(t, "Cluster 12 has been marked for removal.", loc.Query().Get("__message"))
	assert.Equal(t, []string{"12"}, fc.Removed())
}

func TestRemoveRejectsInvalidIDs(t *testing.T) {
	s, fc := newTestServer(t, Options{})

	for _, raw := range []string{"", "-1", "abc", "12.0", "1; rm -rf /"} {
		rec := postForm(s.Handler(), "/do_condor_remove", url.Values{"condor_job_id": {raw}})
		require.Equal(t, http.StatusSeeOther, rec.Code, "id %q", raw)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(loc.Query().Get("__message"), "Invalid Condor Job ID"), "id %q", raw)
	}
	assert.Empty(t, fc.Removed(), "invalid ids must never reach condor_rm")
}

func TestRemoveRequiresPost(t *testing.T) {
	s, fc := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/do_condor_remove?condor_job_id=1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, fc.Removed())
}

func TestRemoveRateLimit(t *testing.T) {
	s, fc := newTestServer(t, Options{RemoveRate: 2})

	for i := 0; i < 2; i++ {
		rec := postForm(s.Handler(), "/do_condor_remove", url.Values{"condor_job_id": {"1"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
	}
	rec := postForm(s.Handler(), "/do_condor_remove", url.Values{"condor_job_id": {"1"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, fc.Removed(), 2)
}

func TestRemoveRateZeroDisablesLimit(t *testing.T) {
	s, fc := newTestServer(t, Options{RemoveRate: 0})

	for i := 0; i < 20; i++ {
		rec := postForm(s.Handler(), "/do_condor_remove", url.Values{"condor_job_id": {"1"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
	}
	assert.Len(t, fc.Removed(), 20)
}

func TestRateLimiterPerClient(t *testing.T) {
	l := newRateLimiter(1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "limits are tracked per client")

	now = now.Add(time.Minute)
	assert.True(t, l.Allow("10.0.0.1"), "bucket refills over time")

	now = now.Add(2 * limiterIdle)
	l.Allow("10.0.0.3")
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.clients, 1, "idle clients are dropped")
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	s, _ := newTestServer(t, Options{Username: "admin", PasswordHash: string(hash)})

	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		want       int
	}{
		{name: "no credentials", want: http.StatusUnauthorized},
		{name: "wrong password", user: "admin", pass: "nope", setAuth: true, want: http.StatusUnauthorized},
		{name: "wrong user", user: "bob", pass: "s3cret", setAuth: true, want: http.StatusUnauthorized},
		{name: "valid", user: "admin", pass: "s3cret", setAuth: true, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))
}

func TestQueueAPI(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp QueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"12.0"}, resp.JobIDs)
}

func TestExecutionsAPI(t *testing.T) {
	execs := &fakeExecutions{}
	s, _ := newTestServer(t, Options{Executions: execs})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/executions?state=queued&state=running", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []model.Execution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "train", got[0].Name)
	assert.Equal(t, [][]string{{"queued", "running"}}, execs.states)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/executions?state=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIWithoutBackends(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/executions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReconcileAPI(t *testing.T) {
	rec := httptest.NewRecorder()
	s, _ := newTestServer(t, Options{Reconciler: &fakeReconciler{}})
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report reconcile.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.QueueEmpty)
	assert.Equal(t, []string{"e1"}, report.Suspicious)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/reconcile", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	s, _ = newTestServer(t, Options{Reconciler: &fakeReconciler{err: errors.New("db locked")}})
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReconcileAPIGetDoesNotRunPass(t *testing.T) {
	last := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	fr := &fakeReconciler{lastPass: last}
	s, _ := newTestServer(t, Options{Reconciler: fr})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reconcile", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp CandidatesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"e1"}, resp.Suspicious)
		assert.True(t, resp.LastPass.Equal(last))
	}
	assert.Equal(t, 0, fr.runs)
}

func TestReconcileAPISpacing(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	fr := &fakeReconciler{lastPass: now.Add(-30 * time.Second)}
	s, _ := newTestServer(t, Options{Reconciler: fr, ReconcileSpacing: 2 * time.Minute})
	s.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.Equal(t, 0, fr.runs)

	fr.lastPass = now.Add(-2 * time.Minute)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fr.runs)

	// no previous pass
	fr.lastPass = time.Time{}
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, fr.runs)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
