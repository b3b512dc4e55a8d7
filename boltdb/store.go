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

// Package boltdb implements datapub.Store in a local bolt database, for
// publishing without a cluster. Directories are nested buckets and files are
// keys.
package boltdb

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

var rootBucket = []byte("root")

// Store is a datapub.Store backed by a bolt database. Every operation runs in
// a single transaction.
type Store struct {
	Db *bolt.DB
}

// Close syncs and closes the underlying database.
func (s *Store) Close() error {
	err := s.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return s.Db.Close()
}

// Open gets a new Store on filename, creating the database if needed.
func Open(filename string) (s *Store, err error) {
	s = &Store{}
	s.Db, err = bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = s.Db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return errors.Wrap(err, "creating root bucket")
	})
	if err != nil {
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return s, nil
}

func split(p string) []string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return nil
	}
	return parts
}

// dir walks to the bucket for the directory elems, returning nil if any
// element is missing or a file.
func dir(tx *bolt.Tx, elems []string) *bolt.Bucket {
	b := tx.Bucket(rootBucket)
	for _, e := range elems {
		if b = b.Bucket([]byte(e)); b == nil {
			return nil
		}
	}
	return b
}

// Status implements datapub.Store.
func (s *Store) Status(ctx context.Context, p string) (exists bool, err error) {
	elems := split(p)
	err = s.Db.View(func(tx *bolt.Tx) error {
		if len(elems) == 0 {
			exists = true
			return nil
		}
		parent := dir(tx, elems[:len(elems)-1])
		if parent == nil {
			return nil
		}
		name := []byte(elems[len(elems)-1])
		exists = parent.Bucket(name) != nil || parent.Get(name) != nil
		return nil
	})
	return exists, err
}

// Mkdirs implements datapub.Store.
func (s *Store) Mkdirs(ctx context.Context, p string) error {
	return s.Db.Update(func(tx *bolt.Tx) error {
		_, err := mkdirs(tx, split(p))
		return errors.Wrapf(err, "making %s", p)
	})
}

func mkdirs(tx *bolt.Tx, elems []string) (*bolt.Bucket, error) {
	b := tx.Bucket(rootBucket)
	for _, e := range elems {
		if b.Get([]byte(e)) != nil {
			return nil, errors.Errorf("'%s' is a file", e)
		}
		var err error
		if b, err = b.CreateBucketIfNotExists([]byte(e)); err != nil {
			return nil, errors.Wrapf(err, "creating bucket '%s'", e)
		}
	}
	return b, nil
}

// Delete implements datapub.Store.
func (s *Store) Delete(ctx context.Context, p string) error {
	elems := split(p)
	if len(elems) == 0 {
		return errors.New("refusing to delete the store root")
	}
	return s.Db.Update(func(tx *bolt.Tx) error {
		parent := dir(tx, elems[:len(elems)-1])
		if parent == nil {
			return errors.Wrap(datapub.ErrNotExist, p)
		}
		name := []byte(elems[len(elems)-1])
		if parent.Bucket(name) != nil {
			return errors.Wrapf(parent.DeleteBucket(name), "deleting %s", p)
		}
		if parent.Get(name) == nil {
			return errors.Wrap(datapub.ErrNotExist, p)
		}
		return errors.Wrapf(parent.Delete(name), "deleting %s", p)
	})
}

// Upload implements datapub.Store.
func (s *Store) Upload(ctx context.Context, localPath, remotePath string, overwrite bool) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrap(err, "reading local file")
	}
	elems := split(remotePath)
	if len(elems) == 0 {
		return errors.New("cannot upload to the store root")
	}
	return s.Db.Update(func(tx *bolt.Tx) error {
		parent, err := mkdirs(tx, elems[:len(elems)-1])
		if err != nil {
			return err
		}
		name := []byte(elems[len(elems)-1])
		if parent.Bucket(name) != nil {
			return errors.Errorf("%s is a directory", remotePath)
		}
		if !overwrite && parent.Get(name) != nil {
			return errors.Errorf("%s exists", remotePath)
		}
		// Values carry a one byte tag so an empty file is never read back as
		// a missing key.
		return errors.Wrapf(parent.Put(name, append([]byte{'f'}, content...)), "writing %s", remotePath)
	})
}

// Content returns the bytes stored at p.
func (s *Store) Content(p string) (content []byte, err error) {
	elems := split(p)
	err = s.Db.View(func(tx *bolt.Tx) error {
		if len(elems) == 0 {
			return errors.Errorf("%s is a directory", p)
		}
		parent := dir(tx, elems[:len(elems)-1])
		if parent == nil {
			return errors.Wrap(datapub.ErrNotExist, p)
		}
		v := parent.Get([]byte(elems[len(elems)-1]))
		if v == nil {
			return errors.Wrap(datapub.ErrNotExist, p)
		}
		content = append([]byte(nil), v[1:]...)
		return nil
	})
	return content, err
}

// List implements datapub.Store.
func (s *Store) List(ctx context.Context, p string) (names []string, err error) {
	err = s.Db.View(func(tx *bolt.Tx) error {
		b := dir(tx, split(p))
		if b == nil {
			return errors.Wrap(datapub.ErrNotExist, p)
		}
		names = make([]string, 0)
		return b.ForEach(func(k, v []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	sort.Strings(names)
	return names, err
}
