package filestore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/vector"
	"github.com/ersonp/farmlog/internal/infrastructure/fsutil"
)

// Bundle file names.
const (
	EntriesFile    = "entries.jsonl"
	IDsFile        = "ids.json"
	EmbeddingsFile = "embeddings.f32"
	MetaFile       = "meta.json"
	IndexFile      = "similarity.idx"
	ProfileFile    = "user_config.yaml"
)

// errCorrupt marks a bundle whose files disagree with each other.
var errCorrupt = errors.New("corrupt bundle")

// Meta is the summary stored in meta.json.
type Meta struct {
	EntityKey  string    `json:"entity_key"`
	Count      int       `json:"count"`
	Dim        int       `json:"dim"`
	Model      string    `json:"model"`
	Similarity string    `json:"similarity,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// bundle is the in-memory form of one entity's storage files.
type bundle struct {
	entries  []entities.Entry
	ids      []string
	matrix   vector.Matrix
	meta     Meta
	artifact []byte
}

// readEntries reads the entry log. A missing file yields no entries.
func readEntries(dir string) ([]entities.Entry, error) {
	f, err := os.Open(filepath.Join(dir, EntriesFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening entry log: %w", err)
	}
	defer f.Close()

	var out []entities.Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var e entities.Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("%w: entry log line %d: %w", errCorrupt, line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading entry log: %w", err)
	}
	return out, nil
}

// readMetaRaw returns meta.json as a map so unknown keys survive rewrites.
func readMetaRaw(dir string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading meta: %w", err)
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: meta: %w", errCorrupt, err)
	}
	return raw, nil
}

func readMeta(dir string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if os.IsNotExist(err) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("reading meta: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("%w: meta: %w", errCorrupt, err)
	}
	return meta, nil
}

// readBundle loads every bundle file and checks that they agree.
// A missing bundle yields an empty one.
func readBundle(dir string) (bundle, error) {
	var b bundle
	entries, err := readEntries(dir)
	if err != nil {
		return b, err
	}
	b.entries = entries

	meta, err := readMeta(dir)
	if err != nil {
		return b, err
	}
	b.meta = meta

	idsData, err := os.ReadFile(filepath.Join(dir, IDsFile))
	if os.IsNotExist(err) {
		if len(entries) > 0 {
			return b, fmt.Errorf("%w: missing %s", errCorrupt, IDsFile)
		}
		return b, nil
	}
	if err != nil {
		return b, fmt.Errorf("reading ids: %w", err)
	}
	if err := json.Unmarshal(idsData, &b.ids); err != nil {
		return b, fmt.Errorf("%w: ids: %w", errCorrupt, err)
	}
	if len(b.ids) != len(entries) {
		return b, fmt.Errorf("%w: %d ids for %d entries", errCorrupt, len(b.ids), len(entries))
	}
	for i, id := range b.ids {
		if entries[i].ID != id {
			return b, fmt.Errorf("%w: id %d out of order", errCorrupt, i)
		}
	}

	f, err := os.Open(filepath.Join(dir, EmbeddingsFile))
	if err != nil {
		return b, fmt.Errorf("%w: opening embeddings: %w", errCorrupt, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return b, fmt.Errorf("stat embeddings: %w", err)
	}
	m, err := vector.ReadMatrix(f, st.Size(), len(b.ids), meta.Dim)
	if err != nil {
		return b, fmt.Errorf("%w: %w", errCorrupt, err)
	}
	b.matrix = m

	artifact, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil && !os.IsNotExist(err) {
		return b, fmt.Errorf("reading similarity index: %w", err)
	}
	b.artifact = artifact
	return b, nil
}

// writeBundle stages every bundle file and renames them into place together.
// A bundle without an artifact also loses any stale similarity.idx.
func writeBundle(dir string, b bundle) error {
	if len(b.entries) != len(b.ids) || b.matrix.Rows != len(b.ids) {
		return fmt.Errorf("%w: %d entries, %d ids, %d rows", errCorrupt, len(b.entries), len(b.ids), b.matrix.Rows)
	}

	var entriesBuf bytes.Buffer
	enc := json.NewEncoder(&entriesBuf)
	enc.SetEscapeHTML(false)
	for _, e := range b.entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encoding entry: %w", err)
		}
	}

	ids := b.ids
	if ids == nil {
		ids = []string{}
	}
	idsData, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding ids: %w", err)
	}

	var vecBuf bytes.Buffer
	if err := vector.WriteMatrix(&vecBuf, b.matrix); err != nil {
		return err
	}

	metaData, err := mergeMeta(dir, b.meta)
	if err != nil {
		return err
	}

	batch := fsutil.NewBatch(dir)
	files := []struct {
		name string
		data []byte
	}{
		{EntriesFile, entriesBuf.Bytes()},
		{IDsFile, idsData},
		{EmbeddingsFile, vecBuf.Bytes()},
		{MetaFile, metaData},
	}
	if b.artifact != nil {
		files = append(files, struct {
			name string
			data []byte
		}{IndexFile, b.artifact})
	}
	for _, f := range files {
		if err := batch.Add(f.name, f.data); err != nil {
			batch.Abort()
			return err
		}
	}
	if err := batch.Commit(); err != nil {
		return err
	}

	if b.artifact == nil {
		if err := os.Remove(filepath.Join(dir, IndexFile)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale similarity index: %w", err)
		}
	}
	return nil
}

// mergeMeta renders meta over the existing meta.json, keeping keys it does
// not own (such as "user").
func mergeMeta(dir string, meta Meta) ([]byte, error) {
	raw, err := readMetaRaw(dir)
	if err != nil {
		// A corrupt meta.json is replaced.
		raw = map[string]json.RawMessage{}
	}
	own, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding meta: %w", err)
	}
	var ownRaw map[string]json.RawMessage
	if err := json.Unmarshal(own, &ownRaw); err != nil {
		return nil, fmt.Errorf("encoding meta: %w", err)
	}
	if meta.Similarity == "" {
		delete(raw, "similarity")
	}
	for k, v := range ownRaw {
		raw[k] = v
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding meta: %w", err)
	}
	return data, nil
}
