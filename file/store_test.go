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

package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/file"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := file.NewStore(filepath.Join(root, "remote"))
	require.NoError(t, err)

	exists, err := s.Status(ctx, "/user/test")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, s.Mkdirs(ctx, "/user/test"))
	require.NoError(t, s.Mkdirs(ctx, "/user/test"))
	exists, err = s.Status(ctx, "/user/test")
	require.NoError(t, err)
	require.True(t, exists)

	local := filepath.Join(root, "data.csv")
	require.NoError(t, os.WriteFile(local, []byte("a,b\n"), 0644))
	require.NoError(t, s.Upload(ctx, local, "/user/test/data.csv", true))
	require.Error(t, s.Upload(ctx, local, "/user/test/data.csv", false))
	require.NoError(t, os.WriteFile(local, []byte("c,d\n"), 0644))
	require.NoError(t, s.Upload(ctx, local, "/user/test/data.csv", true))
	b, err := os.ReadFile(filepath.Join(root, "remote", "user", "test", "data.csv"))
	require.NoError(t, err)
	require.Equal(t, "c,d\n", string(b))

	names, err := s.List(ctx, "/user/test")
	require.NoError(t, err)
	require.Equal(t, []string{"data.csv"}, names)

	require.NoError(t, s.Delete(ctx, "/user/test/data.csv"))
	require.Equal(t, datapub.ErrNotExist, errors.Cause(s.Delete(ctx, "/user/test/data.csv")))
	_, err = s.List(ctx, "/missing")
	require.Equal(t, datapub.ErrNotExist, errors.Cause(err))

	// paths cannot escape the root
	require.NoError(t, s.Mkdirs(ctx, "/../../escape"))
	_, err = os.Stat(filepath.Join(root, "escape"))
	require.True(t, os.IsNotExist(err))
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.json", "a.json", ".hidden"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("{}"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	paths, err := file.Paths(dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, paths)

	paths, err = file.Paths(filepath.Join(dir, "b.json"))
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "b.json")}, paths)

	_, err = file.Paths(filepath.Join(dir, "nope"))
	require.Error(t, err)
}
