package web

import (
	"html/template"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gurneyalex/cubicweb-condor/internal/model"
)

// refreshSeconds is the auto-refresh period of the jobs page.
const refreshSeconds = 91

var jobsPage = template.Must(template.New("jobs").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<meta http-equiv="Refresh" content="{{.Refresh}}; url=/"/>
<title>Condor information</title>
</head>
<body>
{{if .Message}}<div class="message" id="message">{{.Message}}</div>
{{end}}<h1>Condor information</h1>
<h2>Condor Queue</h2>
<pre>{{.Queue}}</pre>
<h2>Condor Remove</h2>
<form id="condor_remove" method="post" action="/do_condor_remove">
<label for="condor_job_id">Condor Job ID</label>
<input type="number" min="0" id="condor_job_id" name="condor_job_id"/>
<button type="submit">Validate</button>
</form>
<h2>Condor Status</h2>
<pre>{{.Status}}</pre>
</body>
</html>
`))

type jobsPageData struct {
	Refresh int
	Message string
	Queue   string
	Status  string
}

// handleJobs renders the condor queue, removal form and pool status.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx := r.Context()
	data := jobsPageData{
		Refresh: refreshSeconds,
		Message: r.URL.Query().Get("__message"),
		Queue:   s.condor.Queue(ctx).Output,
		Status:  s.condor.Status(ctx).Output,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := jobsPage.Execute(w, data); err != nil {
		s.log.Errorf("failed to render jobs page: %v", err)
	}
}

// parseJobID accepts a non-negative integer job id.
func parseJobID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return "", false
	}
	return strconv.Itoa(n), true
}

func redirectWithMessage(w http.ResponseWriter, r *http.Request, message string) {
	target := "/?" + url.Values{"__message": {message}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleRemove runs condor_rm for the submitted id and redirects back to the page.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.limiter != nil {
		if ip := clientIP(r); !s.limiter.Allow(ip) {
			s.log.Infof("removal rate limit exceeded for %s", ip)
			http.Error(w, "Too many removal requests. Please try again later.", http.StatusTooManyRequests)
			return
		}
	}
	if err := r.ParseForm(); err != nil {
		redirectWithMessage(w, r, "Failed to parse form")
		return
	}

	raw := r.PostFormValue("condor_job_id")
	jobID, ok := parseJobID(raw)
	if !ok {
		redirectWithMessage(w, r, "Invalid Condor Job ID: "+raw)
		return
	}

	res := s.condor.Remove(r.Context(), jobID)
	redirectWithMessage(w, r, strings.TrimSpace(res.Output))
}

// QueueResponse is the body of GET /api/v1/queue.
type QueueResponse struct {
	JobIDs []string `json:"job_ids"`
}

func (s *Server) handleQueueAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, QueueResponse{JobIDs: s.condor.JobIDs(r.Context())})
}

// handleExecutionsAPI lists execution records, optionally filtered by
// repeated ?state= parameters.
func (s *Server) handleExecutionsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.executions == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Execution store not configured")
		return
	}
	states := r.URL.Query()["state"]
	for _, st := range states {
		if !model.IsState(st) {
			s.writeError(w, http.StatusBadRequest, "Unknown state: "+st)
			return
		}
	}
	executions, err := s.executions.List(r.Context(), states...)
	if err != nil {
		s.log.Errorf("failed to list executions: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list executions")
		return
	}
	s.writeJSON(w, http.StatusOK, executions)
}

// CandidatesResponse lists the executions the next empty-queue pass fails.
type CandidatesResponse struct {
	Suspicious []string  `json:"suspicious"`
	LastPass   time.Time `json:"last_pass"`
}

// handleReconcileAPI shows the suspicious set on GET and runs a pass on POST.
// A POST arriving less than the configured spacing after the previous pass is
// refused, since two close passes on an empty queue fail every active
// execution.
func (s *Server) handleReconcileAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.reconciler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Reconciler not configured")
		return
	}
	if r.Method == http.MethodGet {
		s.writeJSON(w, http.StatusOK, CandidatesResponse{
			Suspicious: s.reconciler.Candidates(),
			LastPass:   s.reconciler.LastPass(),
		})
		return
	}

	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()
	if last := s.reconciler.LastPass(); s.spacing > 0 && !last.IsZero() {
		if wait := s.spacing - s.now().Sub(last); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			s.writeError(w, http.StatusTooManyRequests, "Last reconciliation pass ran "+s.now().Sub(last).Round(time.Second).String()+" ago")
			return
		}
	}
	report, err := s.reconciler.Run(r.Context())
	if err != nil {
		s.log.Errorf("reconciliation failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
