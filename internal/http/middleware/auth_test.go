package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studyforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

func TestQueryTokenOnlyOnStreamingRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	auth := services.NewAuthService(log, "test-secret", "studyforge", time.Hour)
	userID := uuid.New()
	token, err := auth.IssueAccessToken(userID)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	r := gin.New()
	api := r.Group("/api")
	api.Use(NewAuthMiddleware(log, auth).RequireAuth())
	ok := func(c *gin.Context) {
		if ctxutil.UserID(c.Request.Context()) != userID {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	}
	api.GET("/sse/stream", ok)
	api.GET("/ws/courses/:id", ok)
	api.GET("/courses", ok)

	cases := []struct {
		path string
		want int
	}{
		{"/api/sse/stream?token=" + token, http.StatusOK},
		{"/api/ws/courses/" + uuid.NewString() + "?token=" + token, http.StatusOK},
		{"/api/courses?token=" + token, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s: want=%d got=%d", tc.path, tc.want, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer header: want=200 got=%d", rec.Code)
	}
}
