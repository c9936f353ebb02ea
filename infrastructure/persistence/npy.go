package persistence

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NumPy .npy layout: magic, version, header length, a Python dict literal
// header padded to a 64-byte boundary, then raw data.
var npyMagic = []byte("\x93NUMPY")

const (
	npyAlign     = 64
	npyFloat32LE = "<f4"
)

var errNPYFormat = errors.New("malformed npy file")

var (
	npyDescrRe   = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	npyFortranRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	npyShapeRe   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

type npyHeader struct {
	descr   string
	fortran bool
	shape   []int
}

// writeNPY writes a 2-D little-endian float32 array of rows x cols.
func writeNPY(w io.Writer, rows, cols int, data []float32) error {
	if len(data) != rows*cols {
		return fmt.Errorf("npy: %d values for shape (%d, %d)", len(data), rows, cols)
	}

	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", npyFloat32LE, rows, cols)
	prefix := len(npyMagic) + 2 + 2
	total := prefix + len(dict) + 1
	if rem := total % npyAlign; rem != 0 {
		dict += strings.Repeat(" ", npyAlign-rem)
	}
	dict += "\n"

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(npyMagic); err != nil {
		return err
	}
	if _, err := bw.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(dict))); err != nil {
		return err
	}
	if _, err := bw.WriteString(dict); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, x := range data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// parseNPYHeader parses the header at the start of b and returns it with
// the offset of the first data byte.
func parseNPYHeader(b []byte) (npyHeader, int, error) {
	if len(b) < len(npyMagic)+4 || !bytes.Equal(b[:len(npyMagic)], npyMagic) {
		return npyHeader{}, 0, fmt.Errorf("%w: bad magic", errNPYFormat)
	}

	major := b[len(npyMagic)]
	pos := len(npyMagic) + 2
	var headerLen int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(b[pos:]))
		pos += 2
	case 2, 3:
		if len(b) < pos+4 {
			return npyHeader{}, 0, fmt.Errorf("%w: truncated header length", errNPYFormat)
		}
		headerLen = int(binary.LittleEndian.Uint32(b[pos:]))
		pos += 4
	default:
		return npyHeader{}, 0, fmt.Errorf("%w: unsupported version %d", errNPYFormat, major)
	}
	if len(b) < pos+headerLen {
		return npyHeader{}, 0, fmt.Errorf("%w: truncated header", errNPYFormat)
	}
	dict := string(b[pos : pos+headerLen])

	var h npyHeader
	m := npyDescrRe.FindStringSubmatch(dict)
	if m == nil {
		return npyHeader{}, 0, fmt.Errorf("%w: missing descr", errNPYFormat)
	}
	h.descr = m[1]

	m = npyFortranRe.FindStringSubmatch(dict)
	if m == nil {
		return npyHeader{}, 0, fmt.Errorf("%w: missing fortran_order", errNPYFormat)
	}
	h.fortran = m[1] == "True"

	m = npyShapeRe.FindStringSubmatch(dict)
	if m == nil {
		return npyHeader{}, 0, fmt.Errorf("%w: missing shape", errNPYFormat)
	}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || n < 0 {
			return npyHeader{}, 0, fmt.Errorf("%w: bad shape %q", errNPYFormat, m[1])
		}
		h.shape = append(h.shape, n)
	}

	return h, pos + headerLen, nil
}

// decodeFloat32LE decodes little-endian float32 values.
func decodeFloat32LE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
