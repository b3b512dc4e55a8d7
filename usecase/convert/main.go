// Package convert republishes JSON files, either a JSON array or one object
// per line, in other formats.
package convert

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/json"
	"github.com/pilosa/datapub/usecase/publish"
	"github.com/pkg/errors"
)

// Main holds the options for converting JSON input.
type Main struct {
	publish.Main `flag:"!embed"`

	Input string `help:"JSON file, or directory of JSON files, to convert."`
}

// NewMain returns a new Main.
func NewMain() *Main {
	m := &Main{Main: *publish.NewMain("hive", "")}
	m.LocalDir = "sample-files"
	m.Formats = []string{string(datapub.JSONL), string(datapub.Parquet)}
	return m
}

// Run loads the input and publishes it.
func (m *Main) Run() error {
	if m.Input == "" {
		return errors.New("input must be set")
	}
	if m.BaseName == "" {
		base := filepath.Base(m.Input)
		m.BaseName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := m.Setup(); err != nil {
		return errors.Wrap(err, "setting up")
	}
	if err := m.checkInput(); err != nil {
		return err
	}
	_, err := m.Publish(context.Background(), json.NewFileSource(m.Input))
	return err
}

// checkInput refuses to write an artifact over the input file.
func (m *Main) checkInput() error {
	in, err := filepath.Abs(m.Input)
	if err != nil {
		return errors.Wrap(err, "resolving input")
	}
	for _, f := range m.Config().Formats {
		out, err := filepath.Abs(filepath.Join(m.LocalDir, m.BaseName+"."+extension(f)))
		if err != nil {
			return errors.Wrap(err, "resolving output")
		}
		if out == in {
			return errors.Errorf("%s output would overwrite input %s", f, m.Input)
		}
	}
	return nil
}

func extension(f datapub.Format) string {
	if f == datapub.JSONL {
		return "json"
	}
	return string(f)
}
