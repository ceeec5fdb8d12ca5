// Package loader normalises heterogeneous pyramid sources (zarr, OME-Zarr,
// OME-TIFF) into a single Loader contract.
package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jask/pyramidview/internal/dims"
)

// Metadata is the geometry a Loader reports about its image.
type Metadata struct {
	URL        string
	Dimensions []dims.Dimension
	IsRGB      bool
	IsPyramid  bool
	NumLevels  int
	Height     int
	Width      int
	DType      string
}

// Loader is an opaque handle on a pyramid. The viewer only reads its metadata;
// pixel access belongs to the rendering layer.
type Loader interface {
	Metadata() Metadata
}

// PlaneReader is implemented by loaders that can hand back raw plane values.
// Level 0 is full resolution.
type PlaneReader interface {
	ReadPlane(ctx context.Context, sel dims.Selection, level int) ([]float64, error)
}

// Static is a Loader backed by fixed metadata.
type Static struct {
	Meta Metadata
}

func (s Static) Metadata() Metadata { return s.Meta }

// Info is the connection info a catalog entry supplies for a source.
type Info struct {
	URL        string
	Dimensions []dims.Dimension
	IsRGB      bool
	IsPyramid  bool
}

// Offsets is the IFD offsets manifest of an OME-TIFF. Nil means no manifest.
type Offsets []int64

// TIFFArgs are the arguments of a TIFF pyramid constructor.
type TIFFArgs struct {
	URL     string
	Offsets Offsets
}

// OMEZarrImage is what an OME-Zarr reader yields.
type OMEZarrImage struct {
	Loader Loader
	Name   string
}

// OMEZarrReader loads the pyramid behind an OME-Zarr store.
type OMEZarrReader interface {
	LoadOMEZarr(ctx context.Context) (OMEZarrImage, error)
}

type (
	ZarrConstructor func(ctx context.Context, info Info) (Loader, error)
	OMEZarrOpener   func(ctx context.Context, url string) (OMEZarrReader, error)
	TIFFConstructor func(ctx context.Context, args TIFFArgs) (Loader, error)
)

var (
	ErrUnsupportedSourceType = errors.New("unsupported source type")
	ErrManifestFetchFailed   = errors.New("offsets manifest fetch failed")
)

// UnsupportedSourceTypeError carries the type string the factory rejected.
type UnsupportedSourceTypeError struct {
	Type string
}

func (e *UnsupportedSourceTypeError) Error() string {
	return fmt.Sprintf("pyramid type (%s) is not supported", e.Type)
}

func (e *UnsupportedSourceTypeError) Is(target error) bool {
	return target == ErrUnsupportedSourceType
}

// ManifestFetchError reports a non-404 failure fetching an offsets manifest.
type ManifestFetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *ManifestFetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("fetch offsets manifest %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch offsets manifest %s: %s", e.URL, http.StatusText(e.Status))
	}
}

func (e *ManifestFetchError) Unwrap() error { return e.Err }

func (e *ManifestFetchError) Is(target error) bool {
	return target == ErrManifestFetchFailed
}
