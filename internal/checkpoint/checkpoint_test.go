package checkpoint

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

func sampleDict() StateDict {
	return StateDict{
		"conv1.filter.weight": tensor.FromData([]float64{0.5, -1, 2, 0.25, 0, -0.75}, 2, 1, 1, 3),
		"conv1.filter.bias":   tensor.FromData([]float64{1.5, -2}, 2),
		"fc.weight":           tensor.FromData([]float64{1, 2, 3, 4, 5, 6}, 3, 2),
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"fc.weight", "fc.weight"},
		{"module.fc.weight", "fc.weight"},
		{"state_dict.module.block1.0.conv1.filter.bias", "block1.0.conv1.filter.bias"},
		{"module.module.fc2.weight", "fc2.weight"},
		{"modules.fc.weight", "modules.fc.weight"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), tt.in)
	}
}

func TestNormalizeDuplicate(t *testing.T) {
	sd := StateDict{
		"fc.weight":        tensor.New(1, 1),
		"module.fc.weight": tensor.New(1, 1),
	}
	_, err := Normalize(sd)
	require.ErrorIs(t, err, ErrDuplicateParam)
}

func TestNamesAndNumParams(t *testing.T) {
	sd := sampleDict()
	assert.Equal(t, []string{"conv1.filter.bias", "conv1.filter.weight", "fc.weight"}, sd.Names())
	assert.Equal(t, 14, sd.NumParams())
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	sd := sampleDict()
	require.NoError(t, Save(path, sd))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, len(sd))
	for name, want := range sd {
		require.Contains(t, got, name)
		assert.Equal(t, want.Shape, got[name].Shape, name)
		assert.Equal(t, want.Data, got[name].Data, name)
	}
}

func TestJSONMissingStateDict(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"fc.weight": {"shape": [1], "data": [1]}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), StateDictKey)
}

func TestJSONShapeDataMismatch(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"state_dict": {"fc.weight": {"shape": [2, 2], "data": [1, 2, 3]}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fc.weight")
}

func TestGGUFRoundTripF32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.gguf")
	sd := sampleDict()
	require.NoError(t, SaveGGUF(path, sd, GGMLTypeF32))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size()%DefaultAlignment)

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, len(sd))
	for name, want := range sd {
		assert.Equal(t, want.Shape, got[name].Shape, name)
		assert.InDeltaSlice(t, want.Data, got[name].Data, 1e-7, name)
	}
}

func TestGGUFRoundTripF64Exact(t *testing.T) {
	sd := StateDict{"w": tensor.FromData([]float64{0.1, 1.0 / 3, -7e-300}, 3)}
	var buf bytes.Buffer
	require.NoError(t, WriteGGUF(&buf, sd, GGMLTypeF64, nil))

	got, _, err := ReadGGUF(&buf)
	require.NoError(t, err)
	assert.Equal(t, sd["w"].Data, got["w"].Data)
}

func TestGGUFRoundTripF16(t *testing.T) {
	values := []float64{0, 1, -2, 0.5, 1.25, -0.125, 1024}
	sd := StateDict{"w": tensor.FromData(values, 7)}
	var buf bytes.Buffer
	require.NoError(t, WriteGGUF(&buf, sd, GGMLTypeF16, nil))

	got, _, err := ReadGGUF(&buf)
	require.NoError(t, err)
	assert.Equal(t, values, got["w"].Data)
}

func TestGGUFMetadata(t *testing.T) {
	meta := Metadata{
		"lightcnn.feature":     true,
		"lightcnn.num_classes": uint32(80013),
		"lightcnn.name":        "LightCNN-29v2",
		"lightcnn.dropout":     float32(0.5),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteGGUF(&buf, sampleDict(), GGMLTypeF32, meta))

	_, got, err := ReadGGUF(&buf)
	require.NoError(t, err)
	assert.Equal(t, Architecture, got[ArchitectureKey])
	assert.Equal(t, uint32(DefaultAlignment), got[AlignmentKey])
	for k, v := range meta {
		assert.Equal(t, v, got[k], k)
	}
}

func TestGGUFUnsupportedMetadata(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGGUF(&buf, sampleDict(), GGMLTypeF32, Metadata{"bad": []int{1}})
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestGGUFQuantizedRejected(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGGUF(&buf, sampleDict(), GGMLTypeQ4_0, nil)
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestGGUFBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0xdeadbeef)))
	_, _, err := ReadGGUF(&buf)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestGGUFTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGGUF(&buf, sampleDict(), GGMLTypeF32, nil))
	data := buf.Bytes()
	_, _, err := ReadGGUF(bytes.NewReader(data[:len(data)-40]))
	require.Error(t, err)
}

// ggufHeader encodes a GGUF header followed by raw little-endian values.
func ggufHeader(t *testing.T, tensorCount, kvCount uint64, rest ...any) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range append([]any{uint32(GGUFMagic), uint32(GGUFVersion), tensorCount, kvCount}, rest...) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	return buf.Bytes()
}

func TestGGUFCorruptHeader(t *testing.T) {
	name := "fc.weight"
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"tensor count", ggufHeader(t, 1<<62, 0), "tensor count"},
		{"kv count", ggufHeader(t, 0, 1<<62), "kv count"},
		{
			name: "huge dimension",
			data: ggufHeader(t, 1, 0, uint64(len(name)), []byte(name), uint32(2), uint64(1<<40), uint64(2)),
			want: "dimension",
		},
		{
			name: "element overflow",
			data: ggufHeader(t, 1, 0, uint64(len(name)), []byte(name), uint32(3),
				uint64(1<<30), uint64(1<<30), uint64(1<<30)),
			want: "element count",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, _, err = ReadGGUF(bytes.NewReader(tt.data))
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCorruptGGUF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.gguf")
	require.NoError(t, os.WriteFile(path, ggufHeader(t, 1<<62, 0), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestGGUFPrefixedNames(t *testing.T) {
	sd := StateDict{
		"state_dict.module.fc.weight": tensor.FromData([]float64{1, 2}, 1, 2),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteGGUF(&buf, sd, GGMLTypeF32, nil))

	raw, _, err := ReadGGUF(&buf)
	require.NoError(t, err)
	got, err := Normalize(raw)
	require.NoError(t, err)
	require.Contains(t, got, "fc.weight")
	assert.Equal(t, []int{1, 2}, got["fc.weight"].Shape)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.gguf"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFloat16Conversion(t *testing.T) {
	tests := []struct {
		in   float32
		bits uint16
	}{
		{0, 0x0000},
		{1, 0x3C00},
		{-2, 0xC000},
		{0.5, 0x3800},
		{65504, 0x7BFF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.bits, Float32ToFloat16(tt.in), "encode %v", tt.in)
		assert.Equal(t, tt.in, Float16ToFloat32(tt.bits), "decode %#x", tt.bits)
	}

	// smallest positive denormal
	assert.Equal(t, float32(5.960464477539063e-08), Float16ToFloat32(0x0001))
}
