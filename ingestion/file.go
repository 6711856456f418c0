package ingestion

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/lemmafind/core"
)

// ReadIndexFile decodes a lemma dump. Unknown fields are ignored so dumps
// from newer extractors still load.
func ReadIndexFile(r io.Reader) (*core.IndexFile, error) {
	var file core.IndexFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexFile, err)
	}
	for i, rec := range file.Lemmas {
		if rec == nil {
			return nil, fmt.Errorf("%w: lemma %d is null", ErrIndexFile, i)
		}
	}
	return &file, nil
}

// LoadIndexFile reads a lemma dump from path.
func LoadIndexFile(path string) (*core.IndexFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadIndexFile(f)
}

// ExportIndexFile renders idx in the dump format.
func ExportIndexFile(idx *core.Index) *core.IndexFile {
	meta := idx.Metadata()
	return &core.IndexFile{
		Version:       meta.Version,
		RepoRoot:      meta.RepoRoot,
		Model:         meta.EmbeddingModel,
		HasEmbeddings: idx.HasEmbeddings(),
		Lemmas:        idx.Records(),
	}
}

// WriteIndexFile writes file as indented JSON.
func WriteIndexFile(w io.Writer, file *core.IndexFile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(file)
}
