// Package nifti reads and writes NIfTI-1 volumetric artifacts (.nii and
// .nii.gz). Volumes are decoded into float64 arrays with their affine and
// the header fields the pipeline carries forward; masks are written back
// as uint8 and continuous volumes as float32, matching what the original
// acquisition tooling produces.
package nifti

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"localcsf/pkg/volume"
)

// NIfTI-1 datatype codes for the voxel types the pipeline handles.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
)

const (
	headerSize       = 348
	defaultVoxOffset = 352
)

// header is the fixed 348-byte NIfTI-1 header layout.
type header struct {
	SizeofHdr    int32
	DataType     [10]byte
	DBName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte
	Dim          [8]int16
	IntentP1     float32
	IntentP2     float32
	IntentP3     float32
	IntentCode   int16
	Datatype     int16
	Bitpix       int16
	SliceStart   int16
	PixDim       [8]float32
	VoxOffset    float32
	SclSlope     float32
	SclInter     float32
	SliceEnd     int16
	SliceCode    byte
	XYZTUnits    byte
	CalMax       float32
	CalMin       float32
	SliceDur     float32
	TOffset      float32
	GlMax        int32
	GlMin        int32
	Descrip      [80]byte
	AuxFile      [24]byte
	QformCode    int16
	SformCode    int16
	QuaternB     float32
	QuaternC     float32
	QuaternD     float32
	QoffsetX     float32
	QoffsetY     float32
	QoffsetZ     float32
	SrowX        [4]float32
	SrowY        [4]float32
	SrowZ        [4]float32
	IntentName   [16]byte
	Magic        [4]byte
}

// openReader opens path and transparently unwraps gzip, detected by the
// magic bytes rather than the extension.
func openReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", volume.ErrInputNotFound, path)
		}
		return nil, err
	}
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nifti: reading %s: %w", path, err)
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("nifti: gzip %s: %w", path, err)
		}
		return &gzipReadCloser{gz: gz, file: f}, nil
	}
	return &plainReadCloser{r: br, file: f}, nil
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g *gzipReadCloser) Close() error {
	g.gz.Close()
	return g.file.Close()
}

type plainReadCloser struct {
	r    io.Reader
	file *os.File
}

func (p *plainReadCloser) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *plainReadCloser) Close() error               { return p.file.Close() }

// readHeader decodes the fixed header, probing both byte orders.
func readHeader(r io.Reader) (header, binary.ByteOrder, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return header{}, nil, fmt.Errorf("nifti: short header: %w", err)
	}
	var hdr header
	var order binary.ByteOrder = binary.LittleEndian
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return header{}, nil, err
	}
	if hdr.SizeofHdr != headerSize {
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
			return header{}, nil, err
		}
		if hdr.SizeofHdr != headerSize {
			return header{}, nil, fmt.Errorf("nifti: bad sizeof_hdr %d", hdr.SizeofHdr)
		}
	}
	if hdr.Magic[0] != 'n' || (hdr.Magic[1] != '+' && hdr.Magic[1] != 'i') || hdr.Magic[2] != '1' {
		return header{}, nil, fmt.Errorf("nifti: bad magic %q", hdr.Magic[:3])
	}
	return hdr, order, nil
}

// gridFromHeader builds the grid, preferring the sform affine and
// falling back to a diagonal pixdim transform.
func gridFromHeader(hdr header) volume.Grid {
	g := volume.Grid{
		Nx: int(hdr.Dim[1]),
		Ny: int(hdr.Dim[2]),
		Nz: int(hdr.Dim[3]),
	}
	if hdr.SformCode > 0 {
		rows := [3][4]float32{hdr.SrowX, hdr.SrowY, hdr.SrowZ}
		aff := volume.IdentityAffine()
		for i, row := range rows {
			for j, v := range row {
				aff[i][j] = float64(v)
			}
		}
		g.Affine = aff
	} else if hdr.QformCode > 0 {
		g.Affine = qformAffine(hdr)
	} else {
		g.Affine = volume.ScaledAffine(
			float64(hdr.PixDim[1]),
			float64(hdr.PixDim[2]),
			float64(hdr.PixDim[3]),
		)
	}
	return g
}

// qformAffine decodes the quaternion orientation (NIfTI-1 method 2):
// rotation from the b/c/d quaternion, voxel sizes from pixdim, with
// pixdim[0] carrying the qfac sign of the third axis.
func qformAffine(hdr header) volume.Affine {
	b := float64(hdr.QuaternB)
	c := float64(hdr.QuaternC)
	d := float64(hdr.QuaternD)
	a := 1 - b*b - c*c - d*d
	if a < 0 {
		a = 0
	}
	a = math.Sqrt(a)

	r := [3][3]float64{
		{a*a + b*b - c*c - d*d, 2 * (b*c - a*d), 2 * (b*d + a*c)},
		{2 * (b*c + a*d), a*a + c*c - b*b - d*d, 2 * (c*d - a*b)},
		{2 * (b*d - a*c), 2 * (c*d + a*b), a*a + d*d - b*b - c*c},
	}

	qfac := 1.0
	if hdr.PixDim[0] < 0 {
		qfac = -1
	}
	scale := [3]float64{
		float64(hdr.PixDim[1]),
		float64(hdr.PixDim[2]),
		qfac * float64(hdr.PixDim[3]),
	}
	offset := [3]float64{
		float64(hdr.QoffsetX),
		float64(hdr.QoffsetY),
		float64(hdr.QoffsetZ),
	}

	aff := volume.IdentityAffine()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			aff[i][j] = r[i][j] * scale[j]
		}
		aff[i][3] = offset[i]
	}
	return aff
}

// metaFromHeader extracts the fields that travel with a volume.
func metaFromHeader(hdr header) volume.Header {
	return volume.Header{
		PixDim:    hdr.PixDim,
		XYZTUnits: hdr.XYZTUnits,
		Descrip:   cString(hdr.Descrip[:]),
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// readFrame decodes nvox voxels of the given datatype into dst, applying
// the scl slope/intercept when present.
func readFrame(r io.Reader, order binary.ByteOrder, hdr header, dst []float64) error {
	var err error
	switch hdr.Datatype {
	case dtUint8:
		buf := make([]uint8, len(dst))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				dst[i] = float64(v)
			}
		}
	case dtInt16:
		buf := make([]int16, len(dst))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				dst[i] = float64(v)
			}
		}
	case dtInt32:
		buf := make([]int32, len(dst))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				dst[i] = float64(v)
			}
		}
	case dtFloat32:
		buf := make([]float32, len(dst))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				dst[i] = float64(v)
			}
		}
	case dtFloat64:
		if err = binary.Read(r, order, dst); err != nil {
			return err
		}
	default:
		return fmt.Errorf("nifti: unsupported datatype %d", hdr.Datatype)
	}
	if err != nil {
		return fmt.Errorf("nifti: reading voxel data: %w", err)
	}
	slope, inter := float64(hdr.SclSlope), float64(hdr.SclInter)
	if slope != 0 && !(slope == 1 && inter == 0) {
		for i := range dst {
			dst[i] = dst[i]*slope + inter
		}
	}
	return nil
}

// skipToData advances past the header extension to vox_offset.
func skipToData(r io.Reader, hdr header) error {
	skip := int64(hdr.VoxOffset) - headerSize
	if skip < 0 {
		return fmt.Errorf("nifti: vox_offset %v before end of header", hdr.VoxOffset)
	}
	_, err := io.CopyN(io.Discard, r, skip)
	return err
}

// ReadVolume loads a 3D scalar volume. A 4D file with a single frame is
// accepted, since some tools emit masks with a degenerate time axis.
func ReadVolume(path string) (*volume.ScalarVolume, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	hdr, order, err := readHeader(rc)
	if err != nil {
		return nil, fmt.Errorf("nifti: %s: %w", path, err)
	}
	if hdr.Dim[0] != 3 && !(hdr.Dim[0] == 4 && hdr.Dim[4] <= 1) {
		return nil, fmt.Errorf("nifti: %s: expected 3D volume, dim[0]=%d", path, hdr.Dim[0])
	}
	if err := skipToData(rc, hdr); err != nil {
		return nil, fmt.Errorf("nifti: %s: %w", path, err)
	}

	vol := volume.NewScalarVolume(gridFromHeader(hdr))
	vol.Header = metaFromHeader(hdr)
	if err := readFrame(rc, order, hdr, vol.Data); err != nil {
		return nil, fmt.Errorf("nifti: %s: %w", path, err)
	}
	return vol, nil
}

// ReadTemporal loads a 4D functional volume frame by frame, keeping a
// single decode buffer per frame rather than a second full copy.
func ReadTemporal(path string) (*volume.TemporalVolume, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	hdr, order, err := readHeader(rc)
	if err != nil {
		return nil, fmt.Errorf("nifti: %s: %w", path, err)
	}
	if hdr.Dim[0] != 4 {
		return nil, fmt.Errorf("nifti: %s: expected 4D volume, dim[0]=%d", path, hdr.Dim[0])
	}
	if err := skipToData(rc, hdr); err != nil {
		return nil, fmt.Errorf("nifti: %s: %w", path, err)
	}

	grid := gridFromHeader(hdr)
	nvox := grid.NumVoxels()
	frames := int(hdr.Dim[4])
	tv := &volume.TemporalVolume{
		Grid:   grid,
		Header: metaFromHeader(hdr),
		Frames: make([][]float64, frames),
	}
	for t := 0; t < frames; t++ {
		frame := make([]float64, nvox)
		if err := readFrame(rc, order, hdr, frame); err != nil {
			return nil, fmt.Errorf("nifti: %s frame %d: %w", path, t, err)
		}
		tv.Frames[t] = frame
	}
	return tv, nil
}

// headerFor builds an output header from a grid and carried metadata.
func headerFor(g volume.Grid, meta volume.Header, datatype int16, bitpix int16, frames int) header {
	hdr := header{
		SizeofHdr: headerSize,
		Datatype:  datatype,
		Bitpix:    bitpix,
		VoxOffset: defaultVoxOffset,
		SclSlope:  1,
		PixDim:    meta.PixDim,
		XYZTUnits: meta.XYZTUnits,
		SformCode: 1,
		QformCode: 0,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	hdr.Dim[1] = int16(g.Nx)
	hdr.Dim[2] = int16(g.Ny)
	hdr.Dim[3] = int16(g.Nz)
	for i := 4; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	if frames > 1 {
		hdr.Dim[0] = 4
		hdr.Dim[4] = int16(frames)
	}
	if hdr.PixDim[0] == 0 {
		hdr.PixDim[0] = 1
		// Recover voxel sizes from the affine columns when the source
		// metadata carried none.
		for j := 0; j < 3; j++ {
			var s float64
			for i := 0; i < 3; i++ {
				s += g.Affine[i][j] * g.Affine[i][j]
			}
			hdr.PixDim[j+1] = float32(math.Sqrt(s))
		}
	}
	copy(hdr.Descrip[:], meta.Descrip)
	for i := 0; i < 4; i++ {
		hdr.SrowX[i] = float32(g.Affine[0][i])
		hdr.SrowY[i] = float32(g.Affine[1][i])
		hdr.SrowZ[i] = float32(g.Affine[2][i])
	}
	return hdr
}

// openWriter creates path (and its directory), gzip-wrapped for .gz.
func openWriter(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("nifti: creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("nifti: creating %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".gz") {
		return &gzipWriteCloser{gz: gzip.NewWriter(f), file: f}, nil
	}
	return f, nil
}

type gzipWriteCloser struct {
	gz   *gzip.Writer
	file *os.File
}

func (g *gzipWriteCloser) Write(p []byte) (int, error) { return g.gz.Write(p) }
func (g *gzipWriteCloser) Close() error {
	if err := g.gz.Close(); err != nil {
		g.file.Close()
		return err
	}
	return g.file.Close()
}

func writeHeader(w io.Writer, hdr header) error {
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	// Pad out to vox_offset; the four bytes hold an empty extension flag.
	_, err := w.Write(make([]byte, defaultVoxOffset-headerSize))
	return err
}

// WriteMask serializes a binary mask as uint8 voxels.
func WriteMask(path string, v *volume.ScalarVolume) error {
	wc, err := openWriter(path)
	if err != nil {
		return err
	}
	defer wc.Close()

	hdr := headerFor(v.Grid, v.Header, dtUint8, 8, 1)
	if err := writeHeader(wc, hdr); err != nil {
		return fmt.Errorf("nifti: writing %s: %w", path, err)
	}
	buf := make([]uint8, len(v.Data))
	for i, val := range v.Data {
		buf[i] = uint8(val)
	}
	if err := binary.Write(wc, binary.LittleEndian, buf); err != nil {
		return fmt.Errorf("nifti: writing %s: %w", path, err)
	}
	return nil
}

// WriteVolume serializes a continuous volume as float32 voxels.
func WriteVolume(path string, v *volume.ScalarVolume) error {
	wc, err := openWriter(path)
	if err != nil {
		return err
	}
	defer wc.Close()

	hdr := headerFor(v.Grid, v.Header, dtFloat32, 32, 1)
	if err := writeHeader(wc, hdr); err != nil {
		return fmt.Errorf("nifti: writing %s: %w", path, err)
	}
	if err := writeFloat32(wc, v.Data); err != nil {
		return fmt.Errorf("nifti: writing %s: %w", path, err)
	}
	return nil
}

// WriteTemporal serializes a 4D volume as float32 voxels, frame-major.
func WriteTemporal(path string, t *volume.TemporalVolume) error {
	wc, err := openWriter(path)
	if err != nil {
		return err
	}
	defer wc.Close()

	hdr := headerFor(t.Grid, t.Header, dtFloat32, 32, t.NumFrames())
	if err := writeHeader(wc, hdr); err != nil {
		return fmt.Errorf("nifti: writing %s: %w", path, err)
	}
	for _, frame := range t.Frames {
		if err := writeFloat32(wc, frame); err != nil {
			return fmt.Errorf("nifti: writing %s: %w", path, err)
		}
	}
	return nil
}

func writeFloat32(w io.Writer, data []float64) error {
	buf := make([]float32, len(data))
	for i, val := range data {
		buf[i] = float32(val)
	}
	return binary.Write(w, binary.LittleEndian, buf)
}
