package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"montage/internal/composition"
	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/manifest"
	"montage/internal/services"
	"montage/internal/textutil"
)

const defaultExtension = ".jpg"

// Failure records a material that could not be acquired.
type Failure struct {
	MaterialID string `json:"material_id"`
	Source     string `json:"source"`
	Reason     string `json:"reason"`
}

// Result maps material ids to local assets.
type Result struct {
	Assets   map[string]composition.Asset `json:"assets"`
	Failures []Failure                    `json:"failures,omitempty"`
}

// Fetcher acquires materials.
type Fetcher struct {
	concurrency int
	timeout     time.Duration
	s3cfg       S3Config
	client      *http.Client
	objects     ObjectGetter
	logger      *slog.Logger
}

// NewFetcher constructs a fetcher from configuration.
func NewFetcher(cfg *config.Config, logger *slog.Logger) *Fetcher {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	concurrency := cfg.Assets.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	timeout := time.Duration(cfg.Assets.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		concurrency: concurrency,
		timeout:     timeout,
		s3cfg: S3Config{
			Region:       cfg.Assets.S3Region,
			Profile:      cfg.Assets.S3Profile,
			UsePathStyle: cfg.Assets.S3UsePathStyle,
		},
		client: &http.Client{},
		logger: logging.NewComponentLogger(logger, "assets"),
	}
}

// WithHTTPClient overrides the client used for http(s) sources.
func (f *Fetcher) WithHTTPClient(client *http.Client) {
	if f != nil && client != nil {
		f.client = client
	}
}

// WithObjectGetter overrides the store used for s3:// sources.
func (f *Fetcher) WithObjectGetter(getter ObjectGetter) {
	if f != nil && getter != nil {
		f.objects = getter
	}
}

// Fetch resolves every material, downloading remote ones into dir. Only
// context cancellation aborts; individual failures are reported in the
// result.
func (f *Fetcher) Fetch(ctx context.Context, materials []manifest.Material, dir string) (Result, error) {
	logger := logging.WithContext(ctx, f.logger)
	result := Result{Assets: make(map[string]composition.Asset, len(materials))}
	if len(materials) == 0 {
		return result, nil
	}

	if f.objects == nil && anyS3(materials) {
		store, err := NewS3(ctx, f.s3cfg)
		if err != nil {
			return result, services.Wrap(services.ErrConfiguration, "assets", "s3 client", "initialise s3 client", err)
		}
		f.objects = store
	}
	if needsDownload(materials) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, services.Wrap(services.ErrConfiguration, "assets", "fetch", "create download directory", err)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, mat := range materials {
		g.Go(func() error {
			localPath, err := f.acquire(gctx, i, mat, dir)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logging.WarnWithContext(logger, "material unavailable; overlays will be skipped", "material_unavailable",
					logging.String("material_id", mat.ID),
					logging.String("source", mat.Source),
					logging.Error(err),
					logging.String(logging.FieldImpact, "segments using this material show the base video"),
				)
				mu.Lock()
				result.Failures = append(result.Failures, Failure{MaterialID: mat.ID, Source: mat.Source, Reason: err.Error()})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			result.Assets[mat.ID] = composition.Asset{ID: mat.ID, Path: localPath, Kind: mat.Kind}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	sort.Slice(result.Failures, func(a, b int) bool {
		return result.Failures[a].MaterialID < result.Failures[b].MaterialID
	})
	logger.Info("materials resolved",
		logging.Int("resolved", len(result.Assets)),
		logging.Int("failed", len(result.Failures)),
	)
	return result, nil
}

func (f *Fetcher) acquire(ctx context.Context, index int, mat manifest.Material, dir string) (string, error) {
	lower := strings.ToLower(mat.Source)
	switch {
	case strings.HasPrefix(lower, "s3://"):
		bucket, key, err := ParseS3URL(mat.Source)
		if err != nil {
			return "", err
		}
		return f.download(ctx, dir, targetName(index, mat.ID, key), func(ctx context.Context) (io.ReadCloser, error) {
			return f.objects.Get(ctx, bucket, key)
		})
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		u, err := url.Parse(mat.Source)
		if err != nil {
			return "", fmt.Errorf("parse url: %w", err)
		}
		return f.download(ctx, dir, targetName(index, mat.ID, u.Path), func(ctx context.Context) (io.ReadCloser, error) {
			return f.get(ctx, mat.Source)
		})
	default:
		info, err := os.Stat(mat.Source)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", mat.Source, err)
		}
		if info.IsDir() || info.Size() == 0 {
			return "", fmt.Errorf("%s is not a usable file", mat.Source)
		}
		return mat.Source, nil
	}
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", redact(rawURL), resp.StatusCode)
	}
	return resp.Body, nil
}

// download streams open into dir/name through a temp file so a partial
// download never appears under the final name.
func (f *Fetcher) download(ctx context.Context, dir, name string, open func(context.Context) (io.ReadCloser, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := open(ctx)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	written, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		if copyErr != nil {
			return "", fmt.Errorf("download: %w", copyErr)
		}
		return "", fmt.Errorf("close download: %w", closeErr)
	}
	if written == 0 {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("download is empty")
	}
	target := filepath.Join(dir, name)
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("finalize download: %w", err)
	}
	return target, nil
}

// targetName builds a unique local file name. The extension comes from the
// remote path and defaults to .jpg.
func targetName(index int, id, remotePath string) string {
	ext := strings.ToLower(path.Ext(remotePath))
	if ext == "" || len(ext) > 6 {
		ext = defaultExtension
	}
	return fmt.Sprintf("%02d-%s%s", index, textutil.SanitizeToken(id), ext)
}

// redact drops the query string, which carries presigned credentials.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i] + "?..."
	}
	return rawURL
}

func anyS3(materials []manifest.Material) bool {
	for _, m := range materials {
		if strings.HasPrefix(strings.ToLower(m.Source), "s3://") {
			return true
		}
	}
	return false
}

func needsDownload(materials []manifest.Material) bool {
	for _, m := range materials {
		if manifest.IsRemote(m.Source) {
			return true
		}
	}
	return false
}
