package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
)

func serve(t *testing.T, err error) (int, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) { RespondAPIError(c, err) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var env ErrorEnvelope
	if jerr := json.Unmarshal(rec.Body.Bytes(), &env); jerr != nil {
		t.Fatalf("decode: %v body=%s", jerr, rec.Body.String())
	}
	return rec.Code, env
}

func TestRespondAPIErrorClientError(t *testing.T) {
	code, env := serve(t, apierr.New(http.StatusNotFound, "course_not_found", errors.New("course not found")))
	if code != http.StatusNotFound {
		t.Fatalf("status: want=%d got=%d", http.StatusNotFound, code)
	}
	if env.Error.Code != "course_not_found" || env.Error.Message != "course not found" {
		t.Fatalf("envelope: got=%+v", env.Error)
	}
}

func TestRespondAPIErrorHidesInternals(t *testing.T) {
	code, env := serve(t, errors.New("pq: connection refused on 10.0.0.3"))
	if code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", code)
	}
	if env.Error.Code != "internal_error" || env.Error.Message != "Internal Server Error" {
		t.Fatalf("envelope: got=%+v", env.Error)
	}
}
