// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package csv encodes datasets as comma separated text with a header line.
package csv

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// Encoder writes a header line of field names followed by one line per
// record. Nil values are written as empty fields.
type Encoder struct{}

// NewEncoder returns a CSV Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

func (*Encoder) Format() datapub.Format { return datapub.CSV }

func (*Encoder) Extension() string { return "csv" }

func (*Encoder) Encode(w io.Writer, ds *datapub.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Schema.Names()); err != nil {
		return errors.Wrap(err, "writing header")
	}
	row := make([]string, len(ds.Schema))
	for i, rec := range ds.Records {
		for j, val := range rec {
			s, err := formatValue(val)
			if err != nil {
				return errors.Wrapf(err, "record %d field '%s'", i, ds.Schema[j].Name)
			}
			row[j] = s
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing record %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing")
}

func formatValue(val interface{}) (string, error) {
	switch vt := val.(type) {
	case nil:
		return "", nil
	case string:
		return vt, nil
	case int64:
		return strconv.FormatInt(vt, 10), nil
	case float64:
		return strconv.FormatFloat(vt, 'g', -1, 64), nil
	case time.Time:
		return vt.UTC().Format(time.RFC3339Nano), nil
	default:
		return "", errors.Errorf("unsupported value %v of %[1]T", vt)
	}
}

// Decoder parses CSV written by Encoder. CSV carries no types, so the
// expected schema must be supplied; the header must name the same fields, in
// any order.
type Decoder struct {
	Schema datapub.Schema
}

// NewDecoder returns a Decoder for schema.
func NewDecoder(schema datapub.Schema) *Decoder {
	return &Decoder{Schema: schema}
}

func (d *Decoder) Decode(r io.Reader) (*datapub.Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("missing header line")
	} else if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	positions, err := d.positions(header)
	if err != nil {
		return nil, errors.Wrap(err, "validating header")
	}
	ds := datapub.NewDataset(d.Schema)
	vals := make([]interface{}, len(d.Schema))
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return ds, nil
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading line %d", line)
		}
		for i, f := range d.Schema {
			vals[i] = parseValue(f.Kind, row[positions[i]])
		}
		if err := ds.Append(vals...); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
	}
}

// positions maps each schema field to its column in header.
func (d *Decoder) positions(header []string) ([]int, error) {
	if len(header) != len(d.Schema) {
		return nil, errors.Errorf("header/schema len mismatch: %d vs %d, %v and %v", len(header), len(d.Schema), header, d.Schema.Names())
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if h == "" {
			return nil, errors.Errorf("header contains empty string at %d: %v", i, header)
		}
		if pos, exists := cols[h]; exists {
			return nil, errors.Errorf("%s appeared at both %d and %d in header", h, pos, i)
		}
		cols[h] = i
	}
	positions := make([]int, len(d.Schema))
	for i, f := range d.Schema {
		pos, ok := cols[f.Name]
		if !ok {
			return nil, errors.Errorf("field '%s' not in header %v", f.Name, header)
		}
		positions[i] = pos
	}
	return positions, nil
}

func parseValue(kind datapub.Kind, s string) interface{} {
	if s == "" && kind != datapub.String {
		return nil
	}
	return s
}
