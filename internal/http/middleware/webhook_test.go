package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newSecretRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", WebhookSecret(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"verified": IsVerifiedWebhook(c),
			"bypass":   IsRateBypass(c),
		})
	})
	return r
}

func TestWebhookSecret(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		header string
		status int
		body   string
	}{
		{"match", "s3cret", "s3cret", http.StatusOK, `{"bypass":true,"verified":true}`},
		{"mismatch", "s3cret", "nope", http.StatusUnauthorized, ""},
		{"missing", "s3cret", "", http.StatusUnauthorized, ""},
		{"prefix only", "s3cret", "s3c", http.StatusUnauthorized, ""},
		{"disabled", "", "anything", http.StatusOK, `{"bypass":false,"verified":false}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newSecretRouter(tc.secret)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
			if tc.header != "" {
				req.Header.Set(HeaderTelegramSecret, tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d (body=%s)", w.Code, tc.status, w.Body.String())
			}
			if tc.body != "" && w.Body.String() != tc.body {
				t.Fatalf("body = %s; want %s", w.Body.String(), tc.body)
			}
		})
	}
}

func TestIsVerifiedWebhook_NonBool(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if IsVerifiedWebhook(c) {
		t.Fatalf("default should be false")
	}
	c.Set(ctxKeyWebhookVerified, "yes")
	if IsVerifiedWebhook(c) {
		t.Fatalf("non-bool should read as false")
	}
}
