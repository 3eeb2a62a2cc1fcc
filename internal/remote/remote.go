package remote

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/nyameri/octreport/internal/config"
	"github.com/nyameri/octreport/internal/dataset"
)

const defaultFetchTimeout = 10 * time.Second

// Fetcher retrieves the layer export for one remote source.
type Fetcher struct {
	src    config.Source
	client *http.Client
}

// New returns a Fetcher for src. It fails if the source is not remote or its
// TLS material cannot be loaded.
func New(src config.Source) (*Fetcher, error) {
	if !src.IsRemote() {
		return nil, fmt.Errorf("remote %q: layers %q is not an http(s) URL", src.ID, src.Layers)
	}
	client, err := buildHTTPClient(src)
	if err != nil {
		return nil, fmt.Errorf("remote %q: build http client: %w", src.ID, err)
	}
	return &Fetcher{src: src, client: client}, nil
}

// Fetch downloads and validates the layer export.
func (f *Fetcher) Fetch(ctx context.Context) (*dataset.LayerExport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.src.Layers, nil)
	if err != nil {
		return nil, fmt.Errorf("remote %q: build request: %w", f.src.ID, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote %q: http get: %w", f.src.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote %q: unexpected status %d", f.src.ID, resp.StatusCode)
	}

	exp, err := dataset.DecodeLayers(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote %q: %w", f.src.ID, err)
	}
	return exp, nil
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		header := t.auth.Header
		if header == "" {
			header = config.DefaultAuthHeader
		}
		req.Header.Set(header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if src.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(src.Auth.CertFile, src.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if src.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(src.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", src.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: src.Auth,
		},
		Timeout: defaultFetchTimeout,
	}, nil
}
