package json

import (
	"bufio"
	"context"
	"io"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/file"
	"github.com/pkg/errors"
)

// FileSource is a datapub.Source which loads a local file, or every file in
// a local directory, holding either a JSON array of objects or one object per
// line. The schema is inferred from the data: fields are ordered by name,
// numbers are ints unless any value is fractional, and strings which all parse
// as RFC3339 are times.
type FileSource struct {
	Path string
}

// NewFileSource returns a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Produce implements datapub.Source.
func (f *FileSource) Produce(ctx context.Context) (*datapub.Dataset, error) {
	paths, err := file.Paths(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "finding input files in %s", f.Path)
	}
	var objs []map[string]interface{}
	for _, p := range paths {
		fobjs, err := readFile(p)
		if err != nil {
			return nil, err
		}
		objs = append(objs, fobjs...)
	}
	if len(objs) == 0 {
		return nil, errors.Wrap(datapub.ErrEmptyDataset, f.Path)
	}
	return NewDataset(objs)
}

// NewDataset builds a dataset from decoded objects with an inferred schema.
func NewDataset(objs []map[string]interface{}) (*datapub.Dataset, error) {
	schema := InferSchema(objs)
	ds := datapub.NewDataset(schema)
	vals := make([]interface{}, len(schema))
	for i, obj := range objs {
		for j, fld := range schema {
			v, err := fromJSON(fld.Kind, obj[fld.Name])
			if err != nil {
				return nil, errors.Wrapf(err, "object %d field '%s'", i, fld.Name)
			}
			vals[j] = v
		}
		if err := ds.Append(vals...); err != nil {
			return nil, errors.Wrapf(err, "object %d", i)
		}
	}
	return ds, nil
}

func readFile(path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	objs, err := ReadObjects(f)
	return objs, errors.Wrapf(err, "reading %s", path)
}

// ReadObjects reads either a JSON array of objects or a stream of objects.
func ReadObjects(r io.Reader) ([]map[string]interface{}, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if first == '[' {
		dec := json.NewDecoder(br)
		dec.UseNumber()
		var objs []map[string]interface{}
		if err := dec.Decode(&objs); err != nil {
			return nil, errors.Wrap(err, "decoding array")
		}
		return objs, nil
	}
	src := NewSource(br)
	objs := make([]map[string]interface{}, 0)
	for {
		obj, err := src.Record()
		if err == io.EOF {
			return objs, nil
		} else if err != nil {
			return nil, errors.Wrapf(err, "decoding object %d", len(objs))
		}
		objs = append(objs, obj)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// InferSchema derives a schema covering every key of every object.
func InferSchema(objs []map[string]interface{}) datapub.Schema {
	kinds := make(map[string]datapub.Kind)
	seen := make(map[string]bool)
	for _, obj := range objs {
		for k, v := range obj {
			if v == nil {
				if _, ok := seen[k]; !ok {
					seen[k] = false
				}
				continue
			}
			kind := inferKind(v)
			if !seen[k] {
				kinds[k] = kind
				seen[k] = true
				continue
			}
			kinds[k] = widen(kinds[k], kind)
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	schema := make(datapub.Schema, len(names))
	for i, n := range names {
		kind, ok := kinds[n]
		if !ok {
			kind = datapub.String
		}
		schema[i] = datapub.Field{Name: n, Kind: kind}
	}
	return schema
}

func inferKind(v interface{}) datapub.Kind {
	switch vt := v.(type) {
	case json.Number:
		if _, err := vt.Int64(); err == nil {
			return datapub.Int
		}
		return datapub.Float
	case string:
		if _, err := time.Parse(time.RFC3339Nano, vt); err == nil {
			return datapub.Time
		}
		return datapub.String
	default:
		return datapub.String
	}
}

func widen(a, b datapub.Kind) datapub.Kind {
	switch {
	case a == b:
		return a
	case (a == datapub.Int && b == datapub.Float) || (a == datapub.Float && b == datapub.Int):
		return datapub.Float
	default:
		return datapub.String
	}
}
