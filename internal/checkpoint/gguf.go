package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// GGUF Constants
const (
	GGUFMagic   = 0x46554747 // "GGUF" in little-endian
	GGUFVersion = 3

	DefaultAlignment = 32

	ArchitectureKey = "general.architecture"
	AlignmentKey    = "general.alignment"
	Architecture    = "lightcnn"
)

// Guards against corrupt length fields.
const (
	maxStringLen   = 1 << 20
	maxArrayLen    = 1 << 24
	maxDims        = 8
	maxTensorCount = 1 << 16
	maxKVCount     = 1 << 16
	maxElements    = 1 << 28
)

// GGUF Value Types
type GGUFType uint32

const (
	GGUFTypeUint8   GGUFType = 0
	GGUFTypeInt8    GGUFType = 1
	GGUFTypeUint16  GGUFType = 2
	GGUFTypeInt16   GGUFType = 3
	GGUFTypeUint32  GGUFType = 4
	GGUFTypeInt32   GGUFType = 5
	GGUFTypeFloat32 GGUFType = 6
	GGUFTypeBool    GGUFType = 7
	GGUFTypeString  GGUFType = 8
	GGUFTypeArray   GGUFType = 9
	GGUFTypeUint64  GGUFType = 10
	GGUFTypeInt64   GGUFType = 11
	GGUFTypeFloat64 GGUFType = 12
)

// GGML Tensor Types
type GGMLType uint32

const (
	GGMLTypeF32  GGMLType = 0
	GGMLTypeF16  GGMLType = 1
	GGMLTypeQ4_0 GGMLType = 2
	GGMLTypeQ4_1 GGMLType = 3
	GGMLTypeQ5_0 GGMLType = 6
	GGMLTypeQ5_1 GGMLType = 7
	GGMLTypeQ8_0 GGMLType = 8
	GGMLTypeQ8_1 GGMLType = 9
	GGMLTypeF64  GGMLType = 28
)

// elemSize returns the encoded size of one value of t.
func (t GGMLType) elemSize() (int, error) {
	switch t {
	case GGMLTypeF32:
		return 4, nil
	case GGMLTypeF16:
		return 2, nil
	case GGMLTypeF64:
		return 8, nil
	}
	return 0, fmt.Errorf("%w: ggml tensor type %d", ErrUnsupportedType, t)
}

// Metadata holds GGUF key/value pairs. Arrays decode to []any.
type Metadata map[string]any

// countingWriter tracks the stream offset so padding can be computed.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// GGUFWriter helps writing GGUF files
type GGUFWriter struct {
	w         *countingWriter
	alignment uint64
}

func NewGGUFWriter(w io.Writer) *GGUFWriter {
	return &GGUFWriter{
		w:         &countingWriter{w: w},
		alignment: DefaultAlignment,
	}
}

func (gw *GGUFWriter) WriteHeader(kvCount, tensorCount uint64) error {
	if err := binary.Write(gw.w, binary.LittleEndian, uint32(GGUFMagic)); err != nil {
		return err
	}
	if err := binary.Write(gw.w, binary.LittleEndian, uint32(GGUFVersion)); err != nil {
		return err
	}
	if err := binary.Write(gw.w, binary.LittleEndian, tensorCount); err != nil {
		return err
	}
	return binary.Write(gw.w, binary.LittleEndian, kvCount)
}

func (gw *GGUFWriter) WriteString(s string) error {
	if err := binary.Write(gw.w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(gw.w, s)
	return err
}

func (gw *GGUFWriter) WriteKV(key string, valType GGUFType, value any) error {
	if err := gw.WriteString(key); err != nil {
		return err
	}
	if err := binary.Write(gw.w, binary.LittleEndian, uint32(valType)); err != nil {
		return err
	}

	switch valType {
	case GGUFTypeUint8:
		return binary.Write(gw.w, binary.LittleEndian, value.(uint8))
	case GGUFTypeInt8:
		return binary.Write(gw.w, binary.LittleEndian, value.(int8))
	case GGUFTypeUint16:
		return binary.Write(gw.w, binary.LittleEndian, value.(uint16))
	case GGUFTypeInt16:
		return binary.Write(gw.w, binary.LittleEndian, value.(int16))
	case GGUFTypeUint32:
		return binary.Write(gw.w, binary.LittleEndian, value.(uint32))
	case GGUFTypeInt32:
		return binary.Write(gw.w, binary.LittleEndian, value.(int32))
	case GGUFTypeFloat32:
		return binary.Write(gw.w, binary.LittleEndian, value.(float32))
	case GGUFTypeUint64:
		return binary.Write(gw.w, binary.LittleEndian, value.(uint64))
	case GGUFTypeInt64:
		return binary.Write(gw.w, binary.LittleEndian, value.(int64))
	case GGUFTypeFloat64:
		return binary.Write(gw.w, binary.LittleEndian, value.(float64))
	case GGUFTypeBool:
		var b uint8
		if value.(bool) {
			b = 1
		}
		return binary.Write(gw.w, binary.LittleEndian, b)
	case GGUFTypeString:
		return gw.WriteString(value.(string))
	default:
		return fmt.Errorf("%w: gguf value type %d", ErrUnsupportedType, valType)
	}
}

func (gw *GGUFWriter) WriteTensorInfo(name string, shape []uint64, ggmlType GGMLType, offset uint64) error {
	if err := gw.WriteString(name); err != nil {
		return err
	}
	rank := uint32(len(shape))
	if err := binary.Write(gw.w, binary.LittleEndian, rank); err != nil {
		return err
	}
	// GGUF dimensions are in reverse order (last dimension first)
	for i := 0; i < int(rank); i++ {
		if err := binary.Write(gw.w, binary.LittleEndian, shape[rank-1-uint32(i)]); err != nil {
			return err
		}
	}
	if err := binary.Write(gw.w, binary.LittleEndian, uint32(ggmlType)); err != nil {
		return err
	}
	return binary.Write(gw.w, binary.LittleEndian, offset)
}

// Pad writes zero bytes up to the next alignment boundary.
func (gw *GGUFWriter) Pad() error {
	pad := alignUp(uint64(gw.w.n), gw.alignment) - uint64(gw.w.n)
	if pad == 0 {
		return nil
	}
	_, err := gw.w.Write(make([]byte, pad))
	return err
}

// WriteTensorData encodes values as ggmlType.
func (gw *GGUFWriter) WriteTensorData(values []float64, ggmlType GGMLType) error {
	size, err := ggmlType.elemSize()
	if err != nil {
		return err
	}
	buf := make([]byte, size*len(values))
	for i, v := range values {
		switch ggmlType {
		case GGMLTypeF32:
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		case GGMLTypeF16:
			binary.LittleEndian.PutUint16(buf[i*2:], Float32ToFloat16(float32(v)))
		case GGMLTypeF64:
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
	}
	_, err = gw.w.Write(buf)
	return err
}

// WriteGGUF writes sd as a complete GGUF stream. Tensors are stored in name
// order as ggmlType; meta values must be string, bool, uint32, int32,
// uint64, int64, float32 or float64.
func WriteGGUF(w io.Writer, sd StateDict, ggmlType GGMLType, meta Metadata) error {
	size, err := ggmlType.elemSize()
	if err != nil {
		return err
	}

	kvs := Metadata{
		ArchitectureKey: Architecture,
		AlignmentKey:    uint32(DefaultAlignment),
	}
	for k, v := range meta {
		kvs[k] = v
	}
	keys := make([]string, 0, len(kvs))
	for k := range kvs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	gw := NewGGUFWriter(w)
	names := sd.Names()
	if err := gw.WriteHeader(uint64(len(keys)), uint64(len(names))); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, k := range keys {
		typ, err := valueType(kvs[k])
		if err != nil {
			return fmt.Errorf("metadata %s: %w", k, err)
		}
		if err := gw.WriteKV(k, typ, kvs[k]); err != nil {
			return fmt.Errorf("metadata %s: %w", k, err)
		}
	}

	var offset uint64
	for _, name := range names {
		t := sd[name]
		shape := make([]uint64, len(t.Shape))
		for i, d := range t.Shape {
			shape[i] = uint64(d)
		}
		if err := gw.WriteTensorInfo(name, shape, ggmlType, offset); err != nil {
			return fmt.Errorf("tensor info %s: %w", name, err)
		}
		offset += alignUp(uint64(size*len(t.Data)), gw.alignment)
	}

	for _, name := range names {
		if err := gw.Pad(); err != nil {
			return err
		}
		if err := gw.WriteTensorData(sd[name].Data, ggmlType); err != nil {
			return fmt.Errorf("tensor data %s: %w", name, err)
		}
	}
	return gw.Pad()
}

func valueType(v any) (GGUFType, error) {
	switch v.(type) {
	case string:
		return GGUFTypeString, nil
	case bool:
		return GGUFTypeBool, nil
	case uint8:
		return GGUFTypeUint8, nil
	case int8:
		return GGUFTypeInt8, nil
	case uint16:
		return GGUFTypeUint16, nil
	case int16:
		return GGUFTypeInt16, nil
	case uint32:
		return GGUFTypeUint32, nil
	case int32:
		return GGUFTypeInt32, nil
	case uint64:
		return GGUFTypeUint64, nil
	case int64:
		return GGUFTypeInt64, nil
	case float32:
		return GGUFTypeFloat32, nil
	case float64:
		return GGUFTypeFloat64, nil
	}
	return 0, fmt.Errorf("%w: metadata value %T", ErrUnsupportedType, v)
}

// ggufReader decodes little-endian values and tracks the stream offset.
type ggufReader struct {
	r io.Reader
	n int64
}

func (gr *ggufReader) read(v any) error {
	if err := binary.Read(gr.r, binary.LittleEndian, v); err != nil {
		return err
	}
	gr.n += int64(binary.Size(v))
	return nil
}

func (gr *ggufReader) u32() (uint32, error) {
	var v uint32
	err := gr.read(&v)
	return v, err
}

func (gr *ggufReader) u64() (uint64, error) {
	var v uint64
	err := gr.read(&v)
	return v, err
}

func (gr *ggufReader) str() (string, error) {
	n, err := gr.u64()
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(gr.r, buf); err != nil {
		return "", err
	}
	gr.n += int64(n)
	return string(buf), nil
}

func (gr *ggufReader) skip(n int64) error {
	if n <= 0 {
		return nil
	}
	copied, err := io.CopyN(io.Discard, gr.r, n)
	gr.n += copied
	return err
}

func (gr *ggufReader) value(typ GGUFType) (any, error) {
	var v any
	switch typ {
	case GGUFTypeUint8:
		v = new(uint8)
	case GGUFTypeInt8:
		v = new(int8)
	case GGUFTypeUint16:
		v = new(uint16)
	case GGUFTypeInt16:
		v = new(int16)
	case GGUFTypeUint32:
		v = new(uint32)
	case GGUFTypeInt32:
		v = new(int32)
	case GGUFTypeFloat32:
		v = new(float32)
	case GGUFTypeUint64:
		v = new(uint64)
	case GGUFTypeInt64:
		v = new(int64)
	case GGUFTypeFloat64:
		v = new(float64)
	case GGUFTypeBool:
		var b uint8
		if err := gr.read(&b); err != nil {
			return nil, err
		}
		return b != 0, nil
	case GGUFTypeString:
		return gr.str()
	case GGUFTypeArray:
		elem, err := gr.u32()
		if err != nil {
			return nil, err
		}
		n, err := gr.u64()
		if err != nil {
			return nil, err
		}
		if n > maxArrayLen {
			return nil, fmt.Errorf("array length %d exceeds limit", n)
		}
		arr := make([]any, n)
		for i := range arr {
			if arr[i], err = gr.value(GGUFType(elem)); err != nil {
				return nil, err
			}
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("%w: gguf value type %d", ErrUnsupportedType, typ)
	}
	if err := gr.read(v); err != nil {
		return nil, err
	}
	// dereference the typed pointer
	switch p := v.(type) {
	case *uint8:
		return *p, nil
	case *int8:
		return *p, nil
	case *uint16:
		return *p, nil
	case *int16:
		return *p, nil
	case *uint32:
		return *p, nil
	case *int32:
		return *p, nil
	case *float32:
		return *p, nil
	case *uint64:
		return *p, nil
	case *int64:
		return *p, nil
	default:
		return *v.(*float64), nil
	}
}

type tensorInfo struct {
	name   string
	shape  []int
	typ    GGMLType
	offset uint64
}

// ReadGGUF decodes a GGUF stream into a state dict and its metadata.
func ReadGGUF(r io.Reader) (StateDict, Metadata, error) {
	gr := &ggufReader{r: r}

	magic, err := gr.u32()
	if err != nil {
		return nil, nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != GGUFMagic {
		return nil, nil, fmt.Errorf("%w: %#x", ErrBadMagic, magic)
	}
	version, err := gr.u32()
	if err != nil {
		return nil, nil, fmt.Errorf("read version: %w", err)
	}
	if version < 2 || version > GGUFVersion {
		return nil, nil, fmt.Errorf("%w: gguf version %d", ErrUnsupportedType, version)
	}
	tensorCount, err := gr.u64()
	if err != nil {
		return nil, nil, fmt.Errorf("read tensor count: %w", err)
	}
	kvCount, err := gr.u64()
	if err != nil {
		return nil, nil, fmt.Errorf("read kv count: %w", err)
	}

	if tensorCount > maxTensorCount {
		return nil, nil, fmt.Errorf("tensor count %d exceeds limit", tensorCount)
	}
	if kvCount > maxKVCount {
		return nil, nil, fmt.Errorf("kv count %d exceeds limit", kvCount)
	}

	meta := make(Metadata, kvCount)
	for i := uint64(0); i < kvCount; i++ {
		key, err := gr.str()
		if err != nil {
			return nil, nil, fmt.Errorf("read key %d: %w", i, err)
		}
		typ, err := gr.u32()
		if err != nil {
			return nil, nil, fmt.Errorf("read type of %s: %w", key, err)
		}
		if meta[key], err = gr.value(GGUFType(typ)); err != nil {
			return nil, nil, fmt.Errorf("read value of %s: %w", key, err)
		}
	}

	alignment := uint64(DefaultAlignment)
	if v, ok := meta[AlignmentKey].(uint32); ok && v > 0 {
		alignment = uint64(v)
	}

	infos := make([]tensorInfo, tensorCount)
	for i := range infos {
		info, err := gr.tensorInfo()
		if err != nil {
			return nil, nil, fmt.Errorf("read tensor info %d: %w", i, err)
		}
		infos[i] = info
	}

	if err := gr.skip(int64(alignUp(uint64(gr.n), alignment)) - gr.n); err != nil {
		return nil, nil, fmt.Errorf("skip padding: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].offset < infos[j].offset })
	sd := make(StateDict, len(infos))
	var pos uint64
	for _, info := range infos {
		if _, dup := sd[info.name]; dup {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateParam, info.name)
		}
		if info.offset < pos {
			return nil, nil, fmt.Errorf("tensor %s: offset %d overlaps previous tensor", info.name, info.offset)
		}
		if err := gr.skip(int64(info.offset - pos)); err != nil {
			return nil, nil, fmt.Errorf("tensor %s: %w", info.name, err)
		}
		t, n, err := gr.tensorData(info)
		if err != nil {
			return nil, nil, fmt.Errorf("tensor %s: %w", info.name, err)
		}
		sd[info.name] = t
		pos = info.offset + n
	}
	return sd, meta, nil
}

func (gr *ggufReader) tensorInfo() (tensorInfo, error) {
	name, err := gr.str()
	if err != nil {
		return tensorInfo{}, err
	}
	rank, err := gr.u32()
	if err != nil {
		return tensorInfo{}, err
	}
	if rank > maxDims {
		return tensorInfo{}, fmt.Errorf("%s: rank %d exceeds limit", name, rank)
	}
	shape := make([]int, rank)
	numel := uint64(1)
	for i := 0; i < int(rank); i++ {
		d, err := gr.u64()
		if err != nil {
			return tensorInfo{}, err
		}
		if d > math.MaxInt32 {
			return tensorInfo{}, fmt.Errorf("%s: dimension %d exceeds limit", name, d)
		}
		if d != 0 && numel > maxElements/d {
			return tensorInfo{}, fmt.Errorf("%s: element count exceeds limit %d", name, maxElements)
		}
		numel *= d
		shape[int(rank)-1-i] = int(d)
	}
	typ, err := gr.u32()
	if err != nil {
		return tensorInfo{}, err
	}
	offset, err := gr.u64()
	if err != nil {
		return tensorInfo{}, err
	}
	return tensorInfo{name: name, shape: shape, typ: GGMLType(typ), offset: offset}, nil
}

func (gr *ggufReader) tensorData(info tensorInfo) (*tensor.Tensor, uint64, error) {
	size, err := info.typ.elemSize()
	if err != nil {
		return nil, 0, err
	}
	numel := tensor.Numel(info.shape)
	buf := make([]byte, numel*size)
	if _, err := io.ReadFull(gr.r, buf); err != nil {
		return nil, 0, err
	}
	gr.n += int64(len(buf))

	t := tensor.New(info.shape...)
	for i := range t.Data {
		switch info.typ {
		case GGMLTypeF32:
			t.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
		case GGMLTypeF16:
			t.Data[i] = float64(Float16ToFloat32(binary.LittleEndian.Uint16(buf[i*2:])))
		case GGMLTypeF64:
			t.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
	}
	return t, uint64(len(buf)), nil
}

func alignUp(n, alignment uint64) uint64 {
	return (n + alignment - 1) / alignment * alignment
}

// Float32ToFloat16 converts a float32 to float16 (represented as uint16)
func Float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	s := uint16((bits >> 16) & 0x8000)
	e := int16((bits >> 23) & 0xFF)
	m := bits & 0x7FFFFF

	if e == 0 {
		// Zero or denormal
		return s
	} else if e == 0xFF {
		// Inf or NaN
		if m == 0 {
			return s | 0x7C00
		}
		return s | 0x7C00 | uint16(m>>13) | 1
	}

	e -= 127 - 15
	if e >= 31 {
		// Overflow to Inf
		return s | 0x7C00
	} else if e <= 0 {
		// Underflow to denormal or zero
		if e < -10 {
			return s
		}
		m |= 0x800000
		m >>= uint32(1 - e)
		return s | uint16(m>>13)
	}

	return s | uint16(e<<10) | uint16(m>>13)
}

// Float16ToFloat32 converts a float16 (represented as uint16) to float32.
func Float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := int32(h>>10) & 0x1F
	mant := uint32(h & 0x3FF)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Denormal: shift until the implicit bit appears
		e := int32(-14)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3FF
		return math.Float32frombits(sign | uint32(e+127)<<23 | mant<<13)
	case 0x1F:
		return math.Float32frombits(sign | 0x7F800000 | mant<<13)
	}
	return math.Float32frombits(sign | uint32(exp-15+127)<<23 | mant<<13)
}
