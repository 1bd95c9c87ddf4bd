// Package devproxy forwards a fixed dev port to whichever local port the
// app server actually came up on.
package devproxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"
	"time"

	"cabo/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var ErrNoUpstream = errors.New("no upstream answered")

const HealthPath = "/__proxy/health"

type Options struct {
	Listen    string
	Host      string
	Ports     []int
	ProbePath string
	Deadline  time.Duration
	Retry     worker.RetryPolicy
}

type Proxy struct {
	opts     Options
	client   *http.Client
	upstream atomic.Pointer[url.URL]
	logger   zerolog.Logger
}

func New(opts Options, logger *zerolog.Logger) *Proxy {
	if opts.Listen == "" {
		opts.Listen = ":5000"
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if len(opts.Ports) == 0 {
		opts.Ports = []int{8080, 3000, 5173}
	}
	if opts.ProbePath == "" {
		opts.ProbePath = "/healthz"
	}
	if opts.Deadline <= 0 {
		opts.Deadline = time.Minute
	}
	if opts.Retry.InitialDelay <= 0 {
		opts.Retry = worker.RetryPolicy{InitialDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second, BackoffFactor: 2}
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "devproxy").Logger()
	}
	return &Proxy{
		opts:   opts,
		client: &http.Client{Timeout: time.Second},
		logger: l,
	}
}

// Upstream is nil until Detect succeeds.
func (p *Proxy) Upstream() *url.URL { return p.upstream.Load() }

// Detect polls the candidate ports in order until one answers any HTTP
// status, backing off between rounds until the deadline.
func (p *Proxy) Detect(ctx context.Context) (*url.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Deadline)
	defer cancel()

	for attempt := 1; ; attempt++ {
		for _, port := range p.opts.Ports {
			u := &url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", p.opts.Host, port)}
			if p.probe(ctx, u) {
				p.upstream.Store(u)
				p.logger.Info().Str("upstream", u.String()).Int("attempt", attempt).Msg("upstream detected")
				return u, nil
			}
		}
		if err := p.opts.Retry.Wait(ctx, attempt); err != nil {
			return nil, fmt.Errorf("%w on ports %v: %v", ErrNoUpstream, p.opts.Ports, err)
		}
	}
}

func (p *Proxy) probe(ctx context.Context, u *url.URL) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String()+p.opts.ProbePath, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Handler serves the health endpoint and forwards everything else.
func (p *Proxy) Handler() http.Handler {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(p.upstream.Load())
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(HealthPath, func(c *gin.Context) {
		u := p.upstream.Load()
		if u == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "detecting", "ports": p.opts.Ports})
			return
		}
		if !p.probe(c.Request.Context(), u) {
			c.JSON(http.StatusBadGateway, gin.H{"status": "unreachable", "upstream": u.String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "upstream": u.String()})
	})
	r.NoRoute(func(c *gin.Context) {
		if p.upstream.Load() == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream not detected yet"})
			return
		}
		rp.ServeHTTP(c.Writer, c.Request)
	})
	return r
}

// Run detects the upstream, then serves until ctx is cancelled.
func (p *Proxy) Run(ctx context.Context) error {
	if _, err := p.Detect(ctx); err != nil {
		return err
	}
	srv := &http.Server{Addr: p.opts.Listen, Handler: p.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		p.logger.Info().Str("listen", p.opts.Listen).Str("upstream", p.Upstream().String()).Msg("proxy listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
