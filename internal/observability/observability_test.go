package observability

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/api/courses", "200", time.Millisecond)
	m.ObserveLLMRequest("gemini", "text", "ok", time.Second, 10, 20)
	m.ObserveCourseBuildStage("outline", "succeeded", time.Second)
	m.IncCourseBuildRun("completed")
	m.APIInflightInc()
	m.APIInflightDec()
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
}

func TestWritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("GET", "/api/courses/:id", "404", 30*time.Millisecond)
	m.ObserveAPI("GET", "/api/courses/:id", "404", 70*time.Millisecond)
	m.ObserveLLMRequest("gemini-2.0-flash", "json", "ok", 2*time.Second, 100, 50)
	m.ObserveCourseBuildStage("content", "failed", 3*time.Second)

	if got := m.apiRequests.Value("GET", "/api/courses/:id", "404"); got != 2 {
		t.Fatalf("api requests: want=2 got=%v", got)
	}
	if got := m.buildStage.Count("content", "failed"); got != 1 {
		t.Fatalf("stage observations: want=1 got=%v", got)
	}

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE sf_api_requests_total counter",
		`sf_api_requests_total{method="GET",route="/api/courses/:id",status="404"} 2`,
		`sf_api_request_duration_seconds_bucket{method="GET",route="/api/courses/:id",status="404",le="0.05"} 1`,
		`sf_api_request_duration_seconds_bucket{method="GET",route="/api/courses/:id",status="404",le="+Inf"} 2`,
		`sf_llm_tokens_total{model="gemini-2.0-flash",direction="input"} 100`,
		`sf_course_build_stage_total{stage="content",status="failed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	want := `{a="x\"y",b="unknown"}`
	if got != want {
		t.Fatalf("want=%s got=%s", want, got)
	}
	if got := withLe("", "1"); got != `{le="1"}` {
		t.Fatalf("want={le=\"1\"} got=%s", got)
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders(" authorization=Bearer x , bad, =v,k= ")
	if len(h) != 1 || h["authorization"] != "Bearer x" {
		t.Fatalf("headers: got=%v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty headers should be nil")
	}
}
