// Package pyramid reads the metadata of remote image pyramids: plain zarr
// arrays, OME-Zarr stores and OME-TIFF files. Pixel data is never decoded here.
package pyramid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jask/pyramidview/internal/loader"
)

const (
	// maxLevels bounds level probing of pyramidal zarr stores.
	maxLevels = 32
	// maxAxisLength bounds non-spatial axes read from remote metadata.
	maxAxisLength = 1 << 16
)

type zarray struct {
	Shape  []int  `json:"shape"`
	Chunks []int  `json:"chunks"`
	DType  string `json:"dtype"`
}

// NewZarrLoader returns a constructor for zarr arrays whose dimensions are
// declared by the catalog. Pyramids store one array per level under
// "<url>/<level>".
func NewZarrLoader(client *http.Client) loader.ZarrConstructor {
	return func(ctx context.Context, info loader.Info) (loader.Loader, error) {
		var levels []zarray
		if info.IsPyramid {
			for level := 0; level < maxLevels; level++ {
				var arr zarray
				found, err := getJSON(ctx, client, joinURL(info.URL, strconv.Itoa(level), ".zarray"), &arr)
				if err != nil {
					return nil, err
				}
				if !found {
					break
				}
				levels = append(levels, arr)
			}
		} else {
			var arr zarray
			found, err := getJSON(ctx, client, joinURL(info.URL, ".zarray"), &arr)
			if err != nil {
				return nil, err
			}
			if found {
				levels = append(levels, arr)
			}
		}
		if len(levels) == 0 {
			return nil, fmt.Errorf("zarr %s: no .zarray found", info.URL)
		}

		if err := checkShape(levels[0].Shape); err != nil {
			return nil, fmt.Errorf("zarr %s: %w", info.URL, err)
		}
		h, w, err := planeShape(levels[0].Shape, info.IsRGB)
		if err != nil {
			return nil, fmt.Errorf("zarr %s: %w", info.URL, err)
		}
		return &loader.Static{Meta: loader.Metadata{
			URL:        info.URL,
			Dimensions: info.Dimensions,
			IsRGB:      info.IsRGB,
			IsPyramid:  info.IsPyramid,
			NumLevels:  len(levels),
			Height:     h,
			Width:      w,
			DType:      levels[0].DType,
		}}, nil
	}
}

// planeShape returns the y/x extent of an array shape. Interleaved RGB arrays
// carry a trailing samples axis.
func planeShape(shape []int, rgb bool) (int, int, error) {
	n := len(shape)
	if rgb {
		if n < 3 {
			return 0, 0, fmt.Errorf("rgb shape %v has fewer than 3 axes", shape)
		}
		return shape[n-3], shape[n-2], nil
	}
	if n < 2 {
		return 0, 0, fmt.Errorf("shape %v has fewer than 2 axes", shape)
	}
	return shape[n-2], shape[n-1], nil
}

// checkShape rejects array shapes with non-positive extents.
func checkShape(shape []int) error {
	for _, n := range shape {
		if n <= 0 {
			return fmt.Errorf("shape %v has a non-positive extent", shape)
		}
	}
	return nil
}

// getJSON decodes the document at url into v. A 404 reports found=false.
func getJSON(ctx context.Context, client *http.Client, url string, v any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := httpClient(client).Do(req)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return false, fmt.Errorf("get %s: %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("decode %s: %w", url, err)
	}
	return true, nil
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func joinURL(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
