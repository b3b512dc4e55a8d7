package datapub

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Config describes where a run writes its artifacts.
type Config struct {
	// Dir is the remote directory artifacts are published into.
	Dir string
	// LocalDir is the local working directory artifacts are written to
	// before upload.
	LocalDir string
	// BaseName is the file name, without extension, shared by every
	// artifact of a run.
	BaseName string
	Formats  []Format
}

// Publisher produces a Dataset, serializes it in each configured format, and
// publishes the artifacts to a Store. Every step runs sequentially.
type Publisher struct {
	Log   Logger
	Stats Statter

	store    Store
	cfg      Config
	encoders map[Format]Encoder
}

// NewPublisher returns a Publisher writing to store. There must be an encoder
// for every format in cfg.
func NewPublisher(store Store, cfg Config, encoders ...Encoder) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("nil store")
	}
	if cfg.Dir == "" {
		return nil, errors.New("remote directory must be set")
	}
	if cfg.BaseName == "" {
		return nil, errors.New("base name must be set")
	}
	if cfg.LocalDir == "" {
		cfg.LocalDir = "."
	}
	p := &Publisher{
		Log:      NopLogger{},
		Stats:    NopStatter{},
		store:    store,
		cfg:      cfg,
		encoders: make(map[Format]Encoder, len(encoders)),
	}
	for _, enc := range encoders {
		p.encoders[enc.Format()] = enc
	}
	for _, f := range cfg.Formats {
		if _, ok := p.encoders[f]; !ok {
			return nil, errors.Errorf("no encoder for format '%s'", f)
		}
	}
	return p, nil
}

// Config returns the publisher's configuration.
func (p *Publisher) Config() Config { return p.cfg }

// Run executes a complete run against src. The returned Summary is non-nil
// even when err is not; err aggregates every fatal failure.
func (p *Publisher) Run(ctx context.Context, src Source) (*Summary, error) {
	start := time.Now()
	defer func() { p.Stats.Timing("run", time.Since(start), 1) }()
	sum := &Summary{}

	err := p.EnsureDirectory(ctx, p.cfg.Dir)
	sum.record(StageDirectory, "ensuring directory", p.cfg.Dir, err)
	if err != nil {
		return sum, sum.Err()
	}

	ds, err := src.Produce(ctx)
	if kr, ok := src.(interface{ KeyResults() []KeyResult }); ok {
		sum.Keys = kr.KeyResults()
	}
	if err != nil {
		p.Log.Printf("Error generating data: %v", err)
		sum.record(StageProduce, "producing dataset", "", err)
		return sum, sum.Err()
	}
	sum.Records = ds.Len()
	p.Stats.Count("records.produced", int64(ds.Len()), 1)
	p.Log.Printf("Successfully generated %d records.", ds.Len())

	sum.Artifacts = p.serialize(ds, sum)
	p.publish(ctx, sum.Artifacts, sum)

	listing, err := p.List(ctx, p.cfg.Dir)
	sum.record(StageList, "listing", p.cfg.Dir, err)
	if err != nil {
		p.Log.Printf("Error listing files in directory %s: %v", p.cfg.Dir, err)
	}
	sum.Listing = listing
	return sum, sum.Err()
}

// Serialize writes ds in every configured format. Formats are independent:
// the returned artifacts are those which succeeded, and err describes every
// format which failed.
func (p *Publisher) Serialize(ds *Dataset) ([]Artifact, error) {
	sum := &Summary{}
	arts := p.serialize(ds, sum)
	return arts, sum.Err()
}

func (p *Publisher) serialize(ds *Dataset, sum *Summary) []Artifact {
	arts := make([]Artifact, 0, len(p.cfg.Formats))
	if err := os.MkdirAll(p.cfg.LocalDir, 0755); err != nil {
		for _, f := range p.cfg.Formats {
			sum.record(StageSerialize, "creating local directory for "+string(f), p.cfg.LocalDir, err)
		}
		return arts
	}
	for _, f := range p.cfg.Formats {
		art, err := p.SerializeFormat(ds, f)
		sum.record(StageSerialize, "encoding "+string(f), art.Path, err)
		if err != nil {
			p.Log.Printf("Error saving %s file %s: %v", f, art.Path, err)
			continue
		}
		p.Log.Debugf("wrote %d bytes to %s", len(art.Content), art.Path)
		arts = append(arts, art)
	}
	p.Stats.Count("artifacts.serialized", int64(len(arts)), 1)
	if len(arts) > 0 {
		p.Log.Printf("%d files generated locally.", len(arts))
	}
	return arts
}

// SerializeFormat encodes ds in format f and writes it under the local
// directory.
func (p *Publisher) SerializeFormat(ds *Dataset, f Format) (Artifact, error) {
	enc, ok := p.encoders[f]
	if !ok {
		return Artifact{Format: f}, errors.Errorf("no encoder for format '%s'", f)
	}
	art := Artifact{
		Format: f,
		Path:   filepath.Join(p.cfg.LocalDir, p.cfg.BaseName+"."+enc.Extension()),
	}
	buf := &bytes.Buffer{}
	if err := enc.Encode(buf, ds); err != nil {
		return art, errors.Wrap(err, "encoding")
	}
	if err := os.WriteFile(art.Path, buf.Bytes(), 0644); err != nil {
		return art, errors.Wrap(err, "writing file")
	}
	art.Content = buf.Bytes()
	return art, nil
}

// Publish ensures the remote directory, then reconciles and uploads each
// artifact, and finally lists the directory.
func (p *Publisher) Publish(ctx context.Context, arts []Artifact) (*Summary, error) {
	sum := &Summary{Artifacts: arts}
	err := p.EnsureDirectory(ctx, p.cfg.Dir)
	sum.record(StageDirectory, "ensuring directory", p.cfg.Dir, err)
	if err != nil {
		return sum, sum.Err()
	}
	p.publish(ctx, arts, sum)
	sum.Listing, err = p.List(ctx, p.cfg.Dir)
	sum.record(StageList, "listing", p.cfg.Dir, err)
	return sum, sum.Err()
}

// publish reconciles and uploads each artifact. An upload failure is
// recorded and does not stop the remaining uploads.
func (p *Publisher) publish(ctx context.Context, arts []Artifact, sum *Summary) {
	uploaded := 0
	for _, art := range arts {
		target := RemoteTarget{Dir: p.cfg.Dir, Name: art.Name()}
		outcome, err := p.Reconcile(ctx, target.Path())
		switch outcome {
		case OutcomeSkipped:
			sum.skip(StageReconcile, "reconciling", target.Path())
		default:
			sum.record(StageReconcile, "reconciling", target.Path(), err)
		}
		if err != nil {
			p.Log.Printf("Could not reconcile %s, uploading anyway: %v", target, err)
		}

		err = p.Upload(ctx, art, target)
		sum.record(StageUpload, "uploading", target.Path(), err)
		if err != nil {
			p.Log.Printf("Error uploading %s to %s: %v", art.Path, target, err)
			continue
		}
		uploaded++
	}
	p.Stats.Count("artifacts.uploaded", int64(uploaded), 1)
	if uploaded > 0 && uploaded == len(arts) {
		p.Log.Printf("Files uploaded to %s successfully.", p.cfg.Dir)
	}
}

// EnsureDirectory creates dir, including parents, if it does not exist.
func (p *Publisher) EnsureDirectory(ctx context.Context, dir string) error {
	exists, err := p.store.Status(ctx, dir)
	if err != nil {
		return errors.Wrapf(err, "checking directory %s", dir)
	}
	if exists {
		p.Log.Printf("Directory %s already exists.", dir)
		return nil
	}
	p.Log.Printf("Directory %s does not exist. Creating it...", dir)
	return errors.Wrapf(p.store.Mkdirs(ctx, dir), "creating directory %s", dir)
}

// Reconcile removes any existing file at path. OutcomeSkipped means there was
// nothing to remove. A failed status check is reported as OutcomeFailed
// rather than being treated as an absent file.
func (p *Publisher) Reconcile(ctx context.Context, path string) (Outcome, error) {
	exists, err := p.store.Status(ctx, path)
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "checking status")
	}
	if !exists {
		p.Log.Printf("File %s does not exist, safe to upload.", path)
		return OutcomeSkipped, nil
	}
	p.Log.Printf("File %s already exists. Deleting it...", path)
	if err := p.store.Delete(ctx, path); err != nil {
		return OutcomeFailed, errors.Wrap(err, "deleting")
	}
	return OutcomeOK, nil
}

// Upload copies art to target, overwriting any existing file.
func (p *Publisher) Upload(ctx context.Context, art Artifact, target RemoteTarget) error {
	p.Log.Debugf("uploading %s to %s", art.Path, target)
	return p.store.Upload(ctx, art.Path, target.Path(), true)
}

// List returns the names of the entries in dir.
func (p *Publisher) List(ctx context.Context, dir string) ([]string, error) {
	names, err := p.store.List(ctx, dir)
	return names, errors.Wrapf(err, "listing %s", dir)
}

// Errors returns the individual errors making up err, as aggregated by a
// Summary.
func Errors(err error) []error {
	if merr, ok := err.(*multierror.Error); ok {
		return merr.Errors
	}
	if err == nil {
		return nil
	}
	return []error{err}
}
