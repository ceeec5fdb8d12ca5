package pyramid

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/tiff"
	"github.com/google/tiff/bigtiff"

	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
)

// headBytes is how much of an OME-TIFF is fetched to find IFD0 and its
// OME-XML description.
const headBytes = 4 << 20

const (
	tagImageDescription = 270
	tagSubIFDs          = 330

	// maxSubIFDs caps the reduced-resolution levels taken from IFD0.
	maxSubIFDs = 64
)

var errTruncated = errors.New("tiff: IFD0 lies beyond the fetched header")

type omeXML struct {
	Images []struct {
		Name   string `xml:"Name,attr"`
		Pixels struct {
			DimensionOrder string `xml:"DimensionOrder,attr"`
			Type           string `xml:"Type,attr"`
			SizeX          int    `xml:"SizeX,attr"`
			SizeY          int    `xml:"SizeY,attr"`
			SizeZ          int    `xml:"SizeZ,attr"`
			SizeC          int    `xml:"SizeC,attr"`
			SizeT          int    `xml:"SizeT,attr"`
			Interleaved    bool   `xml:"Interleaved,attr"`
			Channels       []struct {
				Name            string `xml:"Name,attr"`
				SamplesPerPixel int    `xml:"SamplesPerPixel,attr"`
			} `xml:"Channel"`
		} `xml:"Pixels"`
	} `xml:"Image"`
}

// ifd0 is what the viewer needs from the first image file directory.
type ifd0 struct {
	description string
	subIFDs     int
}

// NewTIFFLoader returns a constructor reading OME-TIFF metadata.
func NewTIFFLoader(client *http.Client) loader.TIFFConstructor {
	return func(ctx context.Context, args loader.TIFFArgs) (loader.Loader, error) {
		head, err := fetchHead(ctx, client, args.URL)
		if err != nil {
			return nil, err
		}
		ifd, err := parseIFD0(head)
		if err != nil {
			return nil, fmt.Errorf("tiff %s: %w", args.URL, err)
		}
		meta, err := omeMetadata(ifd, args.Offsets)
		if err != nil {
			return nil, fmt.Errorf("tiff %s: %w", args.URL, err)
		}
		meta.URL = args.URL
		return &loader.Static{Meta: meta}, nil
	}
}

func fetchHead(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", headBytes-1))
	resp, err := httpClient(client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("get %s: %s", url, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, headBytes))
}

// parseIFD0 reads the first IFD of a classic or BigTIFF file.
func parseIFD0(b []byte) (ifd0, error) {
	if len(b) < 8 {
		return ifd0{}, errTruncated
	}
	order := tiff.GetByteOrder(binary.BigEndian.Uint16(b[:2]))
	if order == nil {
		return ifd0{}, tiff.ErrInvalidByteOrder{Order: [2]byte{b[0], b[1]}}
	}
	br := tiff.NewBReader(bytes.NewReader(b), order)

	var (
		big    bool
		offset uint64
		parse  = tiff.ParseIFD
	)
	switch v := order.Uint16(b[2:4]); v {
	case tiff.Version:
		offset = uint64(order.Uint32(b[4:8]))
	case bigtiff.Version:
		if len(b) < 16 {
			return ifd0{}, errTruncated
		}
		big, parse = true, bigtiff.ParseIFD
		offset = order.Uint64(b[8:16])
	default:
		return ifd0{}, tiff.ErrUnsuppTIFFVersion{Version: v}
	}

	if err := checkIFD(br, offset, big, uint64(len(b))); err != nil {
		return ifd0{}, err
	}
	ifd, err := parse(br, offset, nil, nil)
	if err != nil {
		return ifd0{}, fmt.Errorf("%w: %v", errTruncated, err)
	}

	var out ifd0
	if f := ifd.GetField(tagImageDescription); f != nil {
		raw := f.Value().Bytes()
		if c := f.Count(); c < uint64(len(raw)) {
			raw = raw[:c]
		}
		out.description = strings.TrimRight(string(raw), "\x00")
	}
	if f := ifd.GetField(tagSubIFDs); f != nil {
		out.subIFDs = int(min(f.Count(), maxSubIFDs))
	}
	return out, nil
}

// checkIFD bounds the IFD at offset and every out-of-line entry value by the
// fetched header. The tiff parser sizes value buffers from entry counts, so
// nothing reaches it unchecked.
func checkIFD(br tiff.BReader, offset uint64, big bool, limit uint64) error {
	if offset < 8 || offset >= limit {
		return errTruncated
	}
	if _, err := br.Seek(int64(offset), io.SeekStart); err != nil {
		return errTruncated
	}
	var n uint64
	if big {
		if err := br.BRead(&n); err != nil {
			return errTruncated
		}
	} else {
		var n16 uint16
		if err := br.BRead(&n16); err != nil {
			return errTruncated
		}
		n = uint64(n16)
	}

	inline := uint64(4)
	if big {
		inline = 8
	}
	for i := uint64(0); i < n; i++ {
		var (
			typeID       uint16
			count, value uint64
		)
		if big {
			e, err := bigtiff.ParseEntry(br)
			if err != nil {
				return errTruncated
			}
			v := e.ValueOffset()
			typeID, count, value = e.TypeID(), e.Count(), br.ByteOrder().Uint64(v[:])
		} else {
			e, err := tiff.ParseEntry(br)
			if err != nil {
				return errTruncated
			}
			v := e.ValueOffset()
			typeID, count, value = e.TypeID(), uint64(e.Count()), uint64(br.ByteOrder().Uint32(v[:]))
		}
		size := tiff.DefaultFieldTypeSpace.GetFieldType(typeID).Size()
		if size == 0 || count > limit/size {
			return errTruncated
		}
		if span := count * size; span > inline && (value > limit || span > limit-value) {
			return errTruncated
		}
	}
	return nil
}

func omeMetadata(ifd ifd0, offsets loader.Offsets) (loader.Metadata, error) {
	if ifd.description == "" {
		return loader.Metadata{}, errors.New("no ImageDescription in IFD0")
	}
	var doc omeXML
	if err := xml.Unmarshal([]byte(ifd.description), &doc); err != nil {
		return loader.Metadata{}, fmt.Errorf("parse OME-XML: %w", err)
	}
	if len(doc.Images) == 0 {
		return loader.Metadata{}, errors.New("OME-XML has no Image")
	}
	px := doc.Images[0].Pixels
	for _, n := range []int{px.SizeZ, px.SizeC, px.SizeT} {
		if n > maxAxisLength {
			return loader.Metadata{}, fmt.Errorf("OME-XML axis length %d exceeds %d", n, maxAxisLength)
		}
	}

	rgb := px.SizeC == 3 && len(px.Channels) > 0 && px.Channels[0].SamplesPerPixel == 3 ||
		px.Interleaved && px.SizeC == 3
	meta := loader.Metadata{
		IsRGB:  rgb,
		Height: px.SizeY,
		Width:  px.SizeX,
		DType:  px.Type,
	}

	names := make([]string, max(px.SizeC, 1))
	for i := range names {
		names[i] = fmt.Sprintf("Channel %d", i)
		if i < len(px.Channels) && px.Channels[i].Name != "" {
			names[i] = px.Channels[i].Name
		}
	}
	meta.Dimensions = []dims.Dimension{
		dims.Labeled("channel", names...),
		dims.Range("z", max(px.SizeZ, 1)),
		dims.Range("time", max(px.SizeT, 1)),
	}

	meta.NumLevels = 1
	if ifd.subIFDs > 0 {
		meta.NumLevels = ifd.subIFDs + 1
	} else if len(offsets) > 0 {
		planes := max(px.SizeZ, 1) * max(px.SizeT, 1)
		if !rgb {
			planes *= max(px.SizeC, 1)
		}
		meta.NumLevels = max(len(offsets)/planes, 1)
	}
	meta.IsPyramid = meta.NumLevels > 1
	return meta, nil
}
