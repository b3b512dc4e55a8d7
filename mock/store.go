package mock

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// Store is an in-memory datapub.Store. FailOn, if set, is consulted before
// every operation and its error returned in place of doing the operation.
type Store struct {
	FailOn func(op, path string) error

	mu    sync.Mutex
	dirs  map[string]struct{}
	files map[string][]byte
	calls []string
}

// NewStore returns an empty Store containing only the root directory.
func NewStore() *Store {
	return &Store{
		dirs:  map[string]struct{}{"/": {}},
		files: make(map[string][]byte),
	}
}

func (s *Store) fail(op, p string) error {
	s.calls = append(s.calls, op+" "+p)
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op, p)
}

// Calls returns every operation performed, as "op path", in order.
func (s *Store) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Content returns the bytes stored at p.
func (s *Store) Content(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path.Clean(p)]
	return b, ok
}

// Put stores content at p directly, creating parent directories.
func (s *Store) Put(p string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = path.Clean(p)
	s.mkdirs(path.Dir(p))
	s.files[p] = content
}

func (s *Store) Status(ctx context.Context, p string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("status", p); err != nil {
		return false, err
	}
	p = path.Clean(p)
	if _, ok := s.dirs[p]; ok {
		return true, nil
	}
	_, ok := s.files[p]
	return ok, nil
}

func (s *Store) Mkdirs(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("mkdirs", p); err != nil {
		return err
	}
	return s.mkdirs(path.Clean(p))
}

func (s *Store) mkdirs(p string) error {
	for dir := p; ; dir = path.Dir(dir) {
		if _, ok := s.files[dir]; ok {
			return errors.Errorf("%s is a file", dir)
		}
		s.dirs[dir] = struct{}{}
		if dir == "/" || dir == "." {
			return nil
		}
	}
}

func (s *Store) Delete(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("delete", p); err != nil {
		return err
	}
	p = path.Clean(p)
	if _, ok := s.files[p]; ok {
		delete(s.files, p)
		return nil
	}
	if _, ok := s.dirs[p]; !ok {
		return errors.Wrap(datapub.ErrNotExist, p)
	}
	prefix := p + "/"
	for f := range s.files {
		if strings.HasPrefix(f, prefix) {
			delete(s.files, f)
		}
	}
	for d := range s.dirs {
		if d == p || strings.HasPrefix(d, prefix) {
			delete(s.dirs, d)
		}
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, localPath, remotePath string, overwrite bool) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrap(err, "reading local file")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("upload", remotePath); err != nil {
		return err
	}
	p := path.Clean(remotePath)
	if _, ok := s.dirs[p]; ok {
		return errors.Errorf("%s is a directory", p)
	}
	if _, ok := s.files[p]; ok && !overwrite {
		return errors.Errorf("%s exists", p)
	}
	if err := s.mkdirs(path.Dir(p)); err != nil {
		return err
	}
	s.files[p] = content
	return nil
}

func (s *Store) List(ctx context.Context, p string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("list", p); err != nil {
		return nil, err
	}
	p = path.Clean(p)
	if _, ok := s.dirs[p]; !ok {
		return nil, errors.Wrap(datapub.ErrNotExist, p)
	}
	names := make([]string, 0)
	for f := range s.files {
		if path.Dir(f) == p {
			names = append(names, path.Base(f))
		}
	}
	for d := range s.dirs {
		if d != p && path.Dir(d) == p {
			names = append(names, path.Base(d))
		}
	}
	sort.Strings(names)
	return names, nil
}
