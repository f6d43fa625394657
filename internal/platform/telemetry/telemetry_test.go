package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	e := echo.New()
	e.GET("/metrics", p.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestProvider_Defaults(t *testing.T) {
	p := NewProvider(Config{})
	assert.Equal(t, "vetclinic", p.cfg.ServiceName)
	assert.Equal(t, "development", p.cfg.Environment)
	assert.False(t, p.Enabled())
}

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	p := NewProvider(Config{Enabled: true})
	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/appointments/:id", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/missing/:id", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound) })

	for _, path := range []string{"/appointments/a1", "/appointments/a2", "/missing/x"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, p)
	assert.Contains(t, body, `route="/appointments/:id",service="vetclinic",status="200"} 2`)
	assert.Contains(t, body, `route="/missing/:id",service="vetclinic",status="404"} 1`)
	assert.NotContains(t, body, "/appointments/a1")
}

func TestMetricsMiddleware_Disabled(t *testing.T) {
	p := NewProvider(Config{})
	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.NotContains(t, scrape(t, p), `route="/ping"`)
}

type fakePool struct{}

func (fakePool) AcquiredConns() int32 { return 3 }
func (fakePool) IdleConns() int32     { return 2 }
func (fakePool) TotalConns() int32    { return 5 }

func TestRegisterPool(t *testing.T) {
	p := NewProvider(Config{Enabled: true})
	require.NoError(t, p.RegisterPool(func() PoolStats { return fakePool{} }))

	body := scrape(t, p)
	assert.Contains(t, body, "db_pool_acquired_connections 3")
	assert.Contains(t, body, "db_pool_total_connections 5")
}

func TestRegister_IgnoresDuplicates(t *testing.T) {
	p := NewProvider(Config{})
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "vetclinic_test_total", Help: "t"})
	require.NoError(t, p.Register(c))
	require.NoError(t, p.Register(c))
	c.Inc()
	assert.True(t, strings.Contains(scrape(t, p), "vetclinic_test_total 1"))
}
