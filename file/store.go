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

// Package file implements datapub.Store on the local filesystem, and helpers
// for reading local inputs.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// Store is a datapub.Store rooted at a local directory. Store paths are
// interpreted relative to Root.
type Store struct {
	Root string
}

// NewStore returns a Store rooted at root, creating root if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("root must be set")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrap(err, "creating root")
	}
	return &Store{Root: root}, nil
}

func (s *Store) local(p string) string {
	return filepath.Join(s.Root, filepath.FromSlash(filepath.Clean("/"+p)))
}

// Status implements datapub.Store.
func (s *Store) Status(ctx context.Context, p string) (bool, error) {
	_, err := os.Stat(s.local(p))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "statting path")
	}
	return true, nil
}

// Mkdirs implements datapub.Store.
func (s *Store) Mkdirs(ctx context.Context, p string) error {
	return errors.Wrap(os.MkdirAll(s.local(p), 0755), "making directory")
}

// Delete implements datapub.Store.
func (s *Store) Delete(ctx context.Context, p string) error {
	lp := s.local(p)
	if lp == filepath.Clean(s.Root) {
		return errors.New("refusing to delete the store root")
	}
	if _, err := os.Lstat(lp); os.IsNotExist(err) {
		return errors.Wrap(datapub.ErrNotExist, p)
	}
	return errors.Wrap(os.RemoveAll(lp), "removing")
}

// Upload implements datapub.Store. The file is copied to a temporary name in
// the target directory and renamed into place.
func (s *Store) Upload(ctx context.Context, localPath, remotePath string, overwrite bool) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrap(err, "reading local file")
	}
	dst := s.local(remotePath)
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return errors.Errorf("%s exists", remotePath)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrap(err, "making parent directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrap(err, "setting mode")
	}
	return errors.Wrap(os.Rename(tmp.Name(), dst), "renaming into place")
}

// List implements datapub.Store. Entries which are uploads in progress are
// not listed.
func (s *Store) List(ctx context.Context, p string) ([]string, error) {
	entries, err := os.ReadDir(s.local(p))
	if os.IsNotExist(err) {
		return nil, errors.Wrap(datapub.ErrNotExist, p)
	} else if err != nil {
		return nil, errors.Wrap(err, "reading directory")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Paths returns pathname if it is a file, or every regular file directly in
// it, in name order, if it is a directory.
func Paths(pathname string) ([]string, error) {
	info, err := os.Stat(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "statting path")
	}
	if !info.IsDir() {
		return []string{pathname}, nil
	}
	entries, err := os.ReadDir(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "reading directory")
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(pathname, e.Name()))
	}
	return files, nil
}
