package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestMetrics_Exposition(t *testing.T) {
	m := NewMetrics()
	m.MessagesTotal.WithLabelValues("astm", "ok").Inc()
	m.ErrorsTotal.WithLabelValues("PARSE_ERROR").Add(2)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := m.Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `lis_messages_total{outcome="ok",protocol="astm"} 1`) {
		t.Errorf("missing messages counter in exposition:\n%s", body)
	}
	if !strings.Contains(body, `lis_errors_total{kind="PARSE_ERROR"} 2`) {
		t.Errorf("missing errors counter in exposition:\n%s", body)
	}
}
