package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/jask/pyramidview/internal/loader"
	"github.com/jask/pyramidview/internal/pyramid"
	"github.com/jask/pyramidview/internal/synthetic"
)

// SyntheticScheme marks catalog URLs served by in-memory synthetic images.
const SyntheticScheme = "synthetic://"

// NewFactory wires the pyramid readers into a loader factory sharing client.
// zarr and static sources whose URL uses SyntheticScheme are generated
// locally instead of fetched.
func NewFactory(client *http.Client) *loader.Factory {
	remoteZarr := pyramid.NewZarrLoader(client)
	return &loader.Factory{
		Zarr: func(ctx context.Context, info loader.Info) (loader.Loader, error) {
			if strings.HasPrefix(info.URL, SyntheticScheme) {
				return synthetic.ZarrConstructor(ctx, info)
			}
			return remoteZarr(ctx, info)
		},
		OpenOMEZarr: pyramid.OpenOMEZarr(client),
		TIFF:        pyramid.NewTIFFLoader(client),
		Client:      client,
	}
}
