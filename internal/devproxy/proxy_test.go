package devproxy

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"cabo/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func portOf(t *testing.T, rawURL string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	_, p, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

// freePort returns a port nothing listens on.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func fastOptions(ports ...int) Options {
	return Options{
		Ports:    ports,
		Deadline: 2 * time.Second,
		Retry:    worker.RetryPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond, BackoffFactor: 2},
	}
}

func TestProxy_DetectsAndForwards(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "app")
		_, _ = w.Write([]byte("hello " + r.URL.Path))
	}))
	defer app.Close()

	p := New(fastOptions(freePort(t), portOf(t, app.URL)), nil)
	u, err := p.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, app.URL, u.String())

	front := httptest.NewServer(p.Handler())
	defer front.Close()

	resp, err := http.Get(front.URL + "/villas/casa-azul")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "app", resp.Header.Get("X-Upstream"))

	health, err := http.Get(front.URL + HealthPath)
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestProxy_DetectGivesUp(t *testing.T) {
	opts := fastOptions(freePort(t))
	opts.Deadline = 100 * time.Millisecond
	p := New(opts, nil)

	_, err := p.Detect(context.Background())
	assert.ErrorIs(t, err, ErrNoUpstream)
	assert.Nil(t, p.Upstream())

	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
