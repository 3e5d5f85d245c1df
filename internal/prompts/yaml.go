package prompts

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/coding-eval/internal/model"
)

// exportFile is the on-disk layout of an exported library.
type exportFile struct {
	Prompts []model.SavedPrompt `yaml:"prompts"`
}

// Export writes every saved prompt as YAML.
func (l *Library) Export(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exportFile{Prompts: l.List()}); err != nil {
		return eris.Wrap(err, "prompts: encode yaml")
	}
	return eris.Wrap(enc.Close(), "prompts: close yaml encoder")
}

// Import saves every prompt in r by name. Ids and timestamps in the file are
// ignored; identity is always the library's.
func (l *Library) Import(ctx context.Context, r io.Reader) (int, model.Sync, error) {
	var f exportFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return 0, model.Committed(), nil
		}
		return 0, model.Committed(), eris.Wrap(err, "prompts: decode yaml")
	}

	var (
		n      int
		synced model.Sync
	)
	for _, p := range f.Prompts {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		_, s, err := l.Save(ctx, p.Name, p.Text)
		if err != nil {
			return n, synced, err
		}
		synced = synced.Merge(s)
		n++
	}
	if n == 0 {
		synced = model.Committed()
	}
	return n, synced, nil
}
