// Package mnist reads the IDX image and label files of the MNIST digit set, plain or
// gzipped, and exposes each image as a preprocess.Grid.
package mnist

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/openfluke/digitscope/preprocess"
)

const (
	imageMagic = 2051
	labelMagic = 2049

	maxSide    = 1 << 10
	maxSamples = 1 << 24
)

var (
	// ErrBadMagic reports a file that is not the expected IDX kind.
	ErrBadMagic = errors.New("bad IDX magic number")
	// ErrBadHeader reports implausible counts or dimensions in an IDX header.
	ErrBadHeader = errors.New("bad IDX header")
)

// Set holds images and their labels.
type Set struct {
	Rows, Cols int
	Images     [][]byte // one row-major image per entry
	Labels     []byte
}

// Len returns the number of samples.
func (s *Set) Len() int { return len(s.Images) }

// Grid returns image i with bytes scaled to [0,1].
func (s *Set) Grid(i int) preprocess.Grid {
	g := make(preprocess.Grid, s.Rows)
	img := s.Images[i]
	for y := range g {
		g[y] = make([]float64, s.Cols)
		for x := range g[y] {
			g[y][x] = float64(img[y*s.Cols+x]) / 255
		}
	}
	return g
}

// Open reads an image file and a label file and checks that they line up.
func Open(imagesPath, labelsPath string) (*Set, error) {
	var set Set
	err := withReader(imagesPath, func(r io.Reader) (err error) {
		set.Rows, set.Cols, set.Images, err = ReadImages(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = withReader(labelsPath, func(r io.Reader) (err error) {
		set.Labels, err = ReadLabels(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(set.Labels) != len(set.Images) {
		return nil, fmt.Errorf("%d images but %d labels", len(set.Images), len(set.Labels))
	}
	return &set, nil
}

// withReader opens path, transparently un-gzipping it, and hands it to fn.
func withReader(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if head, err := br.Peek(2); err == nil && head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("gzip file '%s': %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	if err := fn(r); err != nil {
		return fmt.Errorf("read '%s': %w", path, err)
	}
	return nil
}

// ReadImages reads an IDX3 image file.
func ReadImages(r io.Reader) (rows, cols int, images [][]byte, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return 0, 0, nil, fmt.Errorf("image header: %w", err)
	}
	if header[0] != imageMagic {
		return 0, 0, nil, fmt.Errorf("%w: got %d, expected %d", ErrBadMagic, header[0], imageMagic)
	}

	if header[1] > maxSamples || header[2] == 0 || header[2] > maxSide || header[3] == 0 || header[3] > maxSide {
		return 0, 0, nil, fmt.Errorf("%w: %d images of %dx%d", ErrBadHeader, header[1], header[2], header[3])
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])

	// Images are read one at a time so a short file fails before the header's
	// claimed size is ever allocated.
	size := rows * cols
	images = make([][]byte, 0, min(count, 1<<16))
	for i := 0; i < count; i++ {
		img := make([]byte, size)
		if _, err := io.ReadFull(r, img); err != nil {
			return 0, 0, nil, fmt.Errorf("image %d: %w", i, err)
		}
		images = append(images, img)
	}
	return rows, cols, images, nil
}

// ReadLabels reads an IDX1 label file.
func ReadLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("label header: %w", err)
	}
	if header[0] != labelMagic {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrBadMagic, header[0], labelMagic)
	}

	if header[1] > maxSamples {
		return nil, fmt.Errorf("%w: %d labels", ErrBadHeader, header[1])
	}
	count := int(header[1])
	labels, err := io.ReadAll(io.LimitReader(r, int64(count)))
	if err != nil {
		return nil, fmt.Errorf("label data: %w", err)
	}
	if len(labels) != count {
		return nil, fmt.Errorf("label data: %w", io.ErrUnexpectedEOF)
	}
	return labels, nil
}
