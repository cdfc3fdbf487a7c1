package grid

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
)

// datasetFile is the on-disk JSON layout of a Dataset.
type datasetFile struct {
	Dims      []string             `json:"dims"`
	Coords    Coords               `json:"coords"`
	Variables map[string][]float64 `json:"variables"`
}

// Read decodes a Dataset from its JSON representation.
func Read(r io.Reader) (*Dataset, error) {
	var df datasetFile
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&df); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	ds, err := New(df.Coords, df.Variables)
	if err != nil {
		return nil, err
	}
	if len(df.Dims) > 0 && !slices.Equal(df.Dims, ds.dims) {
		return nil, fmt.Errorf("decode dataset: dims %v do not match coordinates (want %v)", df.Dims, ds.dims)
	}
	return ds, nil
}

// Write encodes ds as JSON. Non-finite values cannot be represented and
// cause an error.
func Write(w io.Writer, ds *Dataset) error {
	df := datasetFile{
		Dims:      ds.Dims(),
		Coords:    ds.coords,
		Variables: make(map[string][]float64, len(ds.fields)),
	}
	for name, f := range ds.fields {
		for i, v := range f.data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("encode dataset: field %q has non-finite value at %d", name, i)
			}
		}
		df.Variables[name] = f.data
	}
	bw := bufio.NewWriter(w)
	if err := json.NewEncoder(bw).Encode(df); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return bw.Flush()
}

// ReadFile reads a Dataset from a JSON file.
func ReadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// WriteFile writes ds to path as JSON, creating or truncating the file.
func WriteFile(path string, ds *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
