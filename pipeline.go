package datapub

import (
	"context"
	"io"
	"path"
)

// Source produces the Dataset a run publishes.
type Source interface {
	Produce(ctx context.Context) (*Dataset, error)
}

// Fetcher retrieves records for a single query key (an account name, a topic)
// from an external system. Implementations return ErrForbidden or
// ErrRateLimited (possibly wrapped) when the remote refuses the request.
type Fetcher interface {
	Fetch(ctx context.Context, key string, limit int) (*Dataset, error)
}

// Format tags a serialized encoding of a Dataset.
type Format string

const (
	CSV     Format = "csv"
	JSONL   Format = "jsonl"
	Parquet Format = "parquet"
	Avro    Format = "avro"
)

// Encoder renders a Dataset in one Format.
type Encoder interface {
	Format() Format
	// Extension is the file extension, without the dot, for this format.
	Extension() string
	Encode(w io.Writer, ds *Dataset) error
}

// Decoder parses a serialized Dataset back into memory.
type Decoder interface {
	Decode(r io.Reader) (*Dataset, error)
}

// Artifact is a Dataset rendered in one Format and written to Path locally.
type Artifact struct {
	Format  Format
	Path    string
	Content []byte
}

// Name is the base file name of the artifact.
func (a Artifact) Name() string {
	return path.Base(a.Path)
}

// Store is a remote hierarchical file store. Paths are slash separated and
// absolute. Status reports (false, nil) for a path which does not exist; a
// non-nil error means existence could not be determined.
type Store interface {
	Status(ctx context.Context, path string) (bool, error)
	Mkdirs(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	// Upload copies the file at localPath to remotePath. The remote file must
	// either end up with the complete new content or keep its previous state.
	Upload(ctx context.Context, localPath, remotePath string, overwrite bool) error
	List(ctx context.Context, path string) ([]string, error)
}

// RemoteTarget identifies where an artifact is published.
type RemoteTarget struct {
	Dir  string
	Name string
}

func (t RemoteTarget) Path() string {
	return path.Join(t.Dir, t.Name)
}

func (t RemoteTarget) String() string {
	return t.Path()
}
