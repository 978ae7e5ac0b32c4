// Package secrets resolves secret:// references from application config
// against Google Secret Manager, with an in-process cache and a local
// KEY=VALUE file fallback for development environments.
package secrets

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment = "local"
	defaultLocalFile   = ".secrets.local"
	meterScope         = "github.com/ramsey2004/homekraft-api/internal/platform/secrets"
)

// accessClient is the slice of the Secret Manager client the fetcher needs.
type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

var newSecretManagerClient = func(ctx context.Context, opts ...option.ClientOption) (accessClient, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// Fetcher resolves secret:// references. Resolved values are cached for the
// lifetime of the process; gateway keys do not rotate mid-deploy.
type Fetcher struct {
	client     accessClient
	ownsClient bool

	logger      *zap.Logger
	env         string
	projectID   string
	localPath   string
	localOnce   sync.Once
	localValues map[string]string
	localErr    error

	mu    sync.RWMutex
	cache map[string]string

	fetchLatency metric.Float64Histogram
	cacheHits    metric.Int64Counter
}

// Option customises Fetcher construction.
type Option func(*Fetcher)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithEnvironment records the deployment environment, used for log
// attribution.
func WithEnvironment(env string) Option {
	return func(f *Fetcher) {
		f.env = strings.ToLower(strings.TrimSpace(env))
	}
}

// WithDefaultProject sets the GCP project secrets are read from when a
// reference does not name one.
func WithDefaultProject(projectID string) Option {
	return func(f *Fetcher) {
		f.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile overrides the path of the local KEY=VALUE secrets file.
func WithFallbackFile(path string) Option {
	return func(f *Fetcher) {
		if strings.TrimSpace(path) != "" {
			f.localPath = strings.TrimSpace(path)
		}
	}
}

// WithSecretManagerClient injects a preconfigured client, primarily for tests.
func WithSecretManagerClient(client accessClient) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher builds a Fetcher. When no Secret Manager client can be
// constructed the fetcher still works, serving values from the local file.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		logger:    zap.NewNop(),
		env:       defaultEnvironment,
		localPath: defaultLocalFile,
		cache:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.env == "" {
		f.env = defaultEnvironment
	}

	meter := otel.GetMeterProvider().Meter(meterScope)
	latency, err := meter.Float64Histogram(
		"secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of secret fetch attempts"),
	)
	if err != nil {
		f.logger.Warn("secrets: latency metric unavailable", zap.Error(err))
	} else {
		f.fetchLatency = latency
	}
	hits, err := meter.Int64Counter(
		"secrets.fetch.cache_hits",
		metric.WithDescription("Secret resolutions served from cache"),
	)
	if err != nil {
		f.logger.Warn("secrets: cache hit metric unavailable", zap.Error(err))
	} else {
		f.cacheHits = hits
	}

	if f.client == nil {
		client, err := newSecretManagerClient(ctx)
		if err != nil {
			f.logger.Warn("secrets: secret manager unavailable, using local file only",
				zap.String("environment", f.env), zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	return f, nil
}

// Close releases the Secret Manager client if the fetcher created it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the value behind a secret:// reference. Remote fetch
// failures caused by missing credentials or an unreachable service fall
// through to the local file; anything else is surfaced to the caller.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	started := time.Now()
	parsed, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	if value, ok := f.cached(parsed.cacheKey()); ok {
		f.countCacheHit(ctx, parsed)
		f.observeFetch(ctx, started, "cache")
		return value, nil
	}

	project := parsed.project
	if project == "" {
		project = f.projectID
	}

	if project != "" && f.client != nil {
		value, fetchErr := f.access(ctx, project, parsed)
		if fetchErr == nil {
			f.store(parsed.cacheKey(), value)
			f.observeFetch(ctx, started, "remote")
			return value, nil
		}
		if !recoverable(fetchErr) {
			f.observeFetch(ctx, started, "error")
			return "", fmt.Errorf("secrets: fetch %s: %w", parsed.canonical, fetchErr)
		}
		f.logger.Debug("secrets: remote fetch failed, trying local file",
			zap.String("secret", fingerprint(parsed.canonical)), zap.Error(fetchErr))
	}

	value, ok := f.local(parsed)
	if !ok {
		f.observeFetch(ctx, started, "error")
		return "", fmt.Errorf("secrets: no value for %s", parsed.canonical)
	}
	f.store(parsed.cacheKey(), value)
	f.observeFetch(ctx, started, "local")
	return value, nil
}

func (f *Fetcher) access(ctx context.Context, project string, ref secretRef) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, ref.name, ref.version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) cached(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	value, ok := f.cache[key]
	return value, ok
}

func (f *Fetcher) store(key, value string) {
	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()
}

// local looks the reference up in the KEY=VALUE file, matching either the
// exact versioned key or the bare canonical reference.
func (f *Fetcher) local(ref secretRef) (string, bool) {
	f.localOnce.Do(f.loadLocalFile)
	if f.localErr != nil {
		f.logger.Debug("secrets: local file unreadable", zap.Error(f.localErr))
		return "", false
	}
	if value, ok := f.localValues[ref.cacheKey()]; ok {
		return value, true
	}
	value, ok := f.localValues[ref.canonical]
	return value, ok
}

func (f *Fetcher) loadLocalFile() {
	f.localValues = map[string]string{}
	file, err := os.Open(f.localPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.localErr = fmt.Errorf("secrets: open %s: %w", f.localPath, err)
		}
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = normalizeScheme(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if parsed, err := parseRef(key); err == nil {
			f.localValues[parsed.canonical] = value
			f.localValues[parsed.cacheKey()] = value
		} else {
			f.localValues[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		f.localErr = fmt.Errorf("secrets: read %s: %w", f.localPath, err)
	}
}

func (f *Fetcher) observeFetch(ctx context.Context, started time.Time, source string) {
	if f.fetchLatency == nil {
		return
	}
	elapsed := float64(time.Since(started)) / float64(time.Millisecond)
	f.fetchLatency.Record(ctx, elapsed, metric.WithAttributes(attribute.String("source", source)))
}

func (f *Fetcher) countCacheHit(ctx context.Context, ref secretRef) {
	if f.cacheHits == nil {
		return
	}
	f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", fingerprint(ref.canonical))))
}

// secretRef is a parsed secret://name?version=N&project=P reference.
type secretRef struct {
	canonical string
	name      string
	version   string
	project   string
}

func (r secretRef) cacheKey() string {
	return r.canonical + "#" + r.version
}

func parseRef(ref string) (secretRef, error) {
	if strings.TrimSpace(ref) == "" {
		return secretRef{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return secretRef{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return secretRef{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return secretRef{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}

	canonical := *u
	canonical.RawQuery = ""
	canonical.Fragment = ""

	query := u.Query()
	version := strings.TrimSpace(query.Get("version"))
	if version == "" {
		version = "latest"
	}

	return secretRef{
		canonical: canonical.String(),
		name:      name,
		version:   version,
		project:   strings.TrimSpace(query.Get("project")),
	}, nil
}

// normalizeScheme rewrites legacy sm:// keys to the secret:// scheme.
func normalizeScheme(key string) string {
	if strings.HasPrefix(key, "sm://") {
		return "secret://" + strings.TrimPrefix(key, "sm://")
	}
	return key
}

// fingerprint masks a reference for metric and log attributes.
func fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:8])
}

// recoverable reports whether a remote fetch error should fall through to
// the local file instead of failing the resolution.
func recoverable(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
