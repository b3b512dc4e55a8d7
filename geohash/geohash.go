// Package geohash derives geohash fields from latitude and longitude fields.
package geohash

import (
	"github.com/mmcloughlin/geohash"
	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// Transformer is a datapub.Transformer for geohashing locations to strings.
type Transformer struct {
	Precision   uint
	LatField    string
	LonField    string
	ResultField string
}

// NewTransformer returns a Transformer which adds a "<prefix>geohash" field
// computed from "<prefix>latitude" and "<prefix>longitude".
func NewTransformer(prefix string, precision uint) *Transformer {
	return &Transformer{
		Precision:   precision,
		LatField:    prefix + "latitude",
		LonField:    prefix + "longitude",
		ResultField: prefix + "geohash",
	}
}

// Transform hashes the latitude and longitude of each record and adds the
// resulting string as a new field. Records missing either coordinate get a
// null hash.
func (t *Transformer) Transform(ds *datapub.Dataset) error {
	lat := ds.Schema.Index(t.LatField)
	if lat < 0 {
		return errors.Errorf("no latitude field '%s'", t.LatField)
	}
	lon := ds.Schema.Index(t.LonField)
	if lon < 0 {
		return errors.Errorf("no longitude field '%s'", t.LonField)
	}
	if t.Precision == 0 || t.Precision > 12 {
		return errors.Errorf("precision %d not in [1, 12]", t.Precision)
	}
	field := datapub.Field{Name: t.ResultField, Kind: datapub.String}
	err := ds.AddField(field, func(rec []interface{}) (interface{}, error) {
		if rec[lat] == nil || rec[lon] == nil {
			return nil, nil
		}
		latitude, err := datapub.Coerce(datapub.Float, rec[lat])
		if err != nil {
			return nil, errors.Wrap(err, "getting latitude")
		}
		longitude, err := datapub.Coerce(datapub.Float, rec[lon])
		if err != nil {
			return nil, errors.Wrap(err, "getting longitude")
		}
		return geohash.EncodeWithPrecision(latitude.(float64), longitude.(float64), t.Precision), nil
	})
	return errors.Wrap(err, "setting result")
}
