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

package kafka

import (
	"context"
	"encoding/binary"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/avro"
	"github.com/pkg/errors"
)

// The Schema type is an object produced by the schema registry.
type Schema struct {
	Schema  string `json:"schema"`  // The actual AVRO schema
	Subject string `json:"subject"` // Subject where the schema is registered for
	Version int    `json:"version"` // Version within this subject
	ID      int    `json:"id"`      // Registry's unique id
}

// Registry decodes Confluent framed Avro values: a zero magic byte, a four
// byte big endian schema id, then the Avro binary encoding. Schemas are
// fetched from a Confluent schema registry and cached.
type Registry struct {
	client *resty.Client

	lock  sync.RWMutex
	cache map[int32]*codec
}

type codec struct {
	codec  *goavro.Codec
	schema datapub.Schema
}

// NewRegistry returns a Registry for the schema registry at url.
func NewRegistry(url string) *Registry {
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(url, "/")).
		SetTimeout(10 * time.Second)
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	return &Registry{
		client: c,
		cache:  make(map[int32]*codec),
	}
}

// Decode returns the schema and values of a framed Avro record.
func (r *Registry) Decode(ctx context.Context, val []byte) (datapub.Schema, []interface{}, error) {
	if len(val) <= 5 || val[0] != 0 {
		return nil, nil, errors.Errorf("unexpected magic byte or length in avro kafka value, should be 0x00, but got 0x%.8x", val)
	}
	id := int32(binary.BigEndian.Uint32(val[1:5]))
	c, err := r.getCodec(ctx, id)
	if err != nil {
		return nil, nil, errors.Wrap(err, "getting avro codec")
	}
	native, _, err := c.codec.NativeFromBinary(val[5:])
	if err != nil {
		return nil, nil, errors.Wrap(err, "decoding avro record")
	}
	m, ok := native.(map[string]interface{})
	if !ok {
		return nil, nil, errors.Errorf("avro value is a %T, not a record", native)
	}
	vals := make([]interface{}, len(c.schema))
	for i, f := range c.schema {
		vals[i] = avro.Unwrap(m[f.Name])
	}
	return c.schema, vals, nil
}

func (r *Registry) getCodec(ctx context.Context, id int32) (*codec, error) {
	r.lock.RLock()
	if c, ok := r.cache[id]; ok {
		r.lock.RUnlock()
		return c, nil
	}
	r.lock.RUnlock()
	r.lock.Lock()
	defer r.lock.Unlock()
	if c, ok := r.cache[id]; ok {
		return c, nil
	}
	schema := &Schema{}
	resp, err := r.client.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(int(id))).
		SetResult(schema).
		Get("/schemas/ids/{id}")
	if err != nil {
		return nil, errors.Wrap(err, "getting schema from registry")
	}
	if resp.IsError() {
		return nil, errors.Errorf("Failed to get schema, code: %d, resp: %s", resp.StatusCode(), resp.Body())
	}
	gc, err := goavro.NewCodec(schema.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "parsing schema")
	}
	ds, err := avro.ParseSchema(gc.Schema())
	if err != nil {
		return nil, errors.Wrap(err, "mapping schema")
	}
	c := &codec{codec: gc, schema: ds}
	r.cache[id] = c
	return c, nil
}
