package pyramid

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
)

// defaultAxes is the axis order of OME-Zarr stores that predate named axes.
var defaultAxes = []string{"t", "c", "z", "y", "x"}

var axisFields = map[string]string{"t": "time", "c": "channel", "z": "z"}

type omeZattrs struct {
	Multiscales []struct {
		Name     string `json:"name"`
		Axes     []any  `json:"axes"`
		Datasets []struct {
			Path string `json:"path"`
		} `json:"datasets"`
	} `json:"multiscales"`
	Omero *struct {
		Channels []struct {
			Label string `json:"label"`
		} `json:"channels"`
	} `json:"omero"`
}

// OMEZarrReader reads an OME-Zarr store's multiscales metadata.
type OMEZarrReader struct {
	client *http.Client
	url    string
	attrs  omeZattrs
}

// OpenOMEZarr returns an opener that fetches the root .zattrs of a store.
func OpenOMEZarr(client *http.Client) loader.OMEZarrOpener {
	return func(ctx context.Context, url string) (loader.OMEZarrReader, error) {
		r := &OMEZarrReader{client: client, url: url}
		found, err := getJSON(ctx, client, joinURL(url, ".zattrs"), &r.attrs)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("ome-zarr %s: no .zattrs", url)
		}
		if len(r.attrs.Multiscales) == 0 || len(r.attrs.Multiscales[0].Datasets) == 0 {
			return nil, fmt.Errorf("ome-zarr %s: no multiscales datasets", url)
		}
		return r, nil
	}
}

// LoadOMEZarr reads the full-resolution array and assembles the loader.
func (r *OMEZarrReader) LoadOMEZarr(ctx context.Context) (loader.OMEZarrImage, error) {
	ms := r.attrs.Multiscales[0]
	var arr zarray
	found, err := getJSON(ctx, r.client, joinURL(r.url, ms.Datasets[0].Path, ".zarray"), &arr)
	if err != nil {
		return loader.OMEZarrImage{}, err
	}
	if !found {
		return loader.OMEZarrImage{}, fmt.Errorf("ome-zarr %s: level 0 array missing", r.url)
	}

	if err := checkShape(arr.Shape); err != nil {
		return loader.OMEZarrImage{}, fmt.Errorf("ome-zarr %s: %w", r.url, err)
	}
	axes := axisNames(ms.Axes)
	if len(axes) != len(arr.Shape) {
		return loader.OMEZarrImage{}, fmt.Errorf("ome-zarr %s: %d axes for shape %v", r.url, len(axes), arr.Shape)
	}
	meta := loader.Metadata{
		URL:       r.url,
		IsPyramid: len(ms.Datasets) > 1,
		NumLevels: len(ms.Datasets),
		DType:     arr.DType,
	}
	for i, axis := range axes {
		size := arr.Shape[i]
		if axis != "y" && axis != "x" && size > maxAxisLength {
			return loader.OMEZarrImage{}, fmt.Errorf("ome-zarr %s: axis %q length %d exceeds %d", r.url, axis, size, maxAxisLength)
		}
		switch axis {
		case "y":
			meta.Height = size
		case "x":
			meta.Width = size
		case "c":
			meta.Dimensions = append(meta.Dimensions, r.channelDimension(size))
		default:
			field, ok := axisFields[axis]
			if !ok {
				field = axis
			}
			meta.Dimensions = append(meta.Dimensions, dims.Range(field, size))
		}
	}
	return loader.OMEZarrImage{Loader: &loader.Static{Meta: meta}, Name: ms.Name}, nil
}

func (r *OMEZarrReader) channelDimension(size int) dims.Dimension {
	if r.attrs.Omero == nil || len(r.attrs.Omero.Channels) != size {
		return dims.Range("channel", size)
	}
	labels := make([]string, size)
	for i, c := range r.attrs.Omero.Channels {
		labels[i] = c.Label
		if labels[i] == "" {
			labels[i] = fmt.Sprintf("Channel %d", i)
		}
	}
	return dims.Labeled("channel", labels...)
}

// axisNames accepts both the string form and the {"name": ...} form of axes.
func axisNames(raw []any) []string {
	if len(raw) == 0 {
		return defaultAxes
	}
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		switch v := a.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			name, _ := v["name"].(string)
			out = append(out, name)
		}
	}
	return out
}
