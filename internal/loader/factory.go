package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-logr/logr"

	"github.com/jask/pyramidview/internal/metrics"
)

var tiffSuffix = regexp.MustCompile(`(?i)ome.tiff?`)

// tiffAliases all resolve to the "tiff" case.
var tiffAliases = []string{"tiff", "static tiff", "bf tiff", "tiff 2", "covid tiff", "rgb tiff", "rgb tiff 2"}

// SourceTypes lists every type string Create dispatches on.
func SourceTypes() []string {
	out := []string{"zarr", "static", "ome-zarr"}
	return append(out, tiffAliases...)
}

// IsSupported reports whether Create dispatches on sourceType.
func IsSupported(sourceType string) bool {
	for _, t := range SourceTypes() {
		if t == sourceType {
			return true
		}
	}
	return false
}

// Factory builds Loaders by delegating to per-format constructors.
type Factory struct {
	Zarr        ZarrConstructor
	OpenOMEZarr OMEZarrOpener
	TIFF        TIFFConstructor
	Client      *http.Client
}

// Create dispatches on sourceType. Unsupported types fail before any I/O.
func (f *Factory) Create(ctx context.Context, sourceType string, info Info) (Loader, error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues("type", sourceType, "url", info.URL)

	var (
		l   Loader
		err error
	)
	switch sourceType {
	case "zarr", "static":
		l, err = f.createZarr(ctx, info)
	case "ome-zarr":
		l, err = f.createOMEZarr(ctx, info)
	case "static tiff", "bf tiff", "tiff 2", "covid tiff", "rgb tiff", "rgb tiff 2", "tiff":
		l, err = f.createTIFF(ctx, info)
	default:
		metrics.RecordLoaderCreate(sourceType, "unsupported")
		return nil, &UnsupportedSourceTypeError{Type: sourceType}
	}
	if err != nil {
		metrics.RecordLoaderCreate(sourceType, "error")
		logger.Error(err, "loader construction failed")
		return nil, err
	}
	metrics.RecordLoaderCreate(sourceType, "ok")
	logger.V(1).Info("loader constructed", "levels", l.Metadata().NumLevels)
	return l, nil
}

func (f *Factory) createZarr(ctx context.Context, info Info) (Loader, error) {
	if f.Zarr == nil {
		return nil, fmt.Errorf("zarr constructor not configured")
	}
	return f.Zarr(ctx, info)
}

func (f *Factory) createOMEZarr(ctx context.Context, info Info) (Loader, error) {
	if f.OpenOMEZarr == nil {
		return nil, fmt.Errorf("ome-zarr reader not configured")
	}
	reader, err := f.OpenOMEZarr(ctx, info.URL)
	if err != nil {
		return nil, fmt.Errorf("open ome-zarr %s: %w", info.URL, err)
	}
	img, err := reader.LoadOMEZarr(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ome-zarr %s: %w", info.URL, err)
	}
	return img.Loader, nil
}

func (f *Factory) createTIFF(ctx context.Context, info Info) (Loader, error) {
	if f.TIFF == nil {
		return nil, fmt.Errorf("tiff constructor not configured")
	}
	offsets, err := f.fetchOffsets(ctx, ManifestURL(info.URL))
	if err != nil {
		return nil, err
	}
	return f.TIFF(ctx, TIFFArgs{URL: info.URL, Offsets: offsets})
}

// ManifestURL derives the offsets manifest location of an OME-TIFF.
func ManifestURL(tiffURL string) string {
	return tiffSuffix.ReplaceAllString(tiffURL, "offsets.json")
}

// fetchOffsets performs the single manifest GET. A 404 means "no manifest"
// and yields empty offsets.
func (f *Factory) fetchOffsets(ctx context.Context, url string) (Offsets, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.RecordManifestFetch("failed")
		return nil, &ManifestFetchError{URL: url, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordManifestFetch("failed")
		return nil, &ManifestFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordManifestFetch("missing")
		return Offsets{}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.RecordManifestFetch("failed")
		return nil, &ManifestFetchError{URL: url, Status: resp.StatusCode}
	}

	var offsets Offsets
	if err := json.NewDecoder(resp.Body).Decode(&offsets); err != nil {
		metrics.RecordManifestFetch("failed")
		return nil, &ManifestFetchError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	if offsets == nil {
		offsets = Offsets{}
	}
	metrics.RecordManifestFetch("found")
	return offsets, nil
}
