// Package checkpoint reads and writes named parameter sets ("state dicts").
//
// Two containers are supported: GGUF files and JSON documents with a
// top-level "state_dict" object. Load picks the format by sniffing the GGUF
// magic number.
package checkpoint

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// StateDictKey is the wrapper key parameters are nested under.
const StateDictKey = "state_dict"

// modulePrefix is added by data-parallel wrappers to every parameter name.
const modulePrefix = "module."

var (
	// ErrBadMagic is returned when a GGUF stream does not start with "GGUF".
	ErrBadMagic = errors.New("checkpoint: bad magic")
	// ErrUnsupportedType is returned for tensor or value types this package cannot decode.
	ErrUnsupportedType = errors.New("checkpoint: unsupported type")
	// ErrDuplicateParam is returned when two stored names map to the same parameter.
	ErrDuplicateParam = errors.New("checkpoint: duplicate parameter")
)

// StateDict maps parameter names to tensors.
type StateDict map[string]*tensor.Tensor

// Names returns the parameter names in sorted order.
func (sd StateDict) Names() []string {
	names := make([]string, 0, len(sd))
	for name := range sd {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NumParams returns the total number of scalar values.
func (sd StateDict) NumParams() int {
	n := 0
	for _, t := range sd {
		n += len(t.Data)
	}
	return n
}

// NormalizeName strips the "state_dict." wrapper and any leading "module."
// prefixes from a stored parameter name.
func NormalizeName(name string) string {
	name = strings.TrimPrefix(name, StateDictKey+".")
	for strings.HasPrefix(name, modulePrefix) {
		name = strings.TrimPrefix(name, modulePrefix)
	}
	return name
}

// Normalize returns a copy of sd with every name passed through
// NormalizeName. Two names collapsing to the same key is an error.
func Normalize(sd StateDict) (StateDict, error) {
	out := make(StateDict, len(sd))
	for _, name := range sd.Names() {
		key := NormalizeName(name)
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateParam, key)
		}
		out[key] = sd[name]
	}
	return out, nil
}

// Load reads a checkpoint file in either supported format. Names are
// returned as stored; use Normalize to map them onto a model.
func Load(path string) (StateDict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(4)
	if err == nil && binary.LittleEndian.Uint32(head) == GGUFMagic {
		sd, _, err := ReadGGUF(br)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return sd, nil
	}

	sd, err := ReadJSON(br)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return sd, nil
}

// Save writes sd to path as a JSON state dict.
func Save(path string, sd StateDict) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	if err := WriteJSON(f, sd); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveGGUF writes sd to path as a GGUF file with tensors stored as typ.
func SaveGGUF(path string, sd StateDict, typ GGMLType) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteGGUF(bw, sd, typ, nil); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
