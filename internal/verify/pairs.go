// Package verify scores face verification pairs with a recognizer.
package verify

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Pair is two face images and whether they show the same person.
type Pair struct {
	A, B string
	Same bool
}

// LoadPairs loads a pair list from a CSV file with the columns
// path_a, path_b, label. Labels are 1/0, -1 for different, or true/false.
// Relative paths are resolved against the CSV file's directory.
// hasHeader skips the first line if true.
func LoadPairs(filename string, hasHeader bool) ([]Pair, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	startRow := 0
	if hasHeader {
		startRow = 1
	}
	if len(records) <= startRow {
		return nil, errors.New("csv file has no data rows")
	}

	dir := filepath.Dir(filename)
	pairs := make([]Pair, 0, len(records)-startRow)
	for i := startRow; i < len(records); i++ {
		record := records[i]
		same, err := parseLabel(record[2])
		if err != nil {
			return nil, fmt.Errorf("failed to parse label at row %d: %w", i, err)
		}
		pairs = append(pairs, Pair{
			A:    resolve(dir, record[0]),
			B:    resolve(dir, record[1]),
			Same: same,
		})
	}
	return pairs, nil
}

func parseLabel(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return false, fmt.Errorf("invalid label %q", s)
	}
	switch v {
	case 1:
		return true, nil
	case 0, -1:
		return false, nil
	}
	return false, fmt.Errorf("invalid label %q", s)
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
