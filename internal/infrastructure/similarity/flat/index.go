// Package flat provides an exact inner-product similarity index.
package flat

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/vector"
)

// Kind is the backend name.
const Kind = "flat"

var magic = [4]byte{'F', 'L', 'A', 'T'}

// Index scores every row against the query. Rows are expected to be
// L2-normalized, making the inner product a cosine similarity.
type Index struct{}

// New returns a flat index.
func New() *Index {
	return &Index{}
}

// Kind returns "flat".
func (i *Index) Kind() string {
	return Kind
}

// Build serializes m into an artifact.
func (i *Index) Build(_ context.Context, _ string, ids []string, m vector.Matrix) ([]byte, error) {
	if len(ids) != m.Rows {
		return nil, fmt.Errorf("building flat index: %d ids for %d rows", len(ids), m.Rows)
	}
	if m.Rows == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	if err := binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(m.Rows), uint32(m.Dim)}); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if err := vector.WriteMatrix(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Search returns the top k rows of the artifact by inner product with q.
func (i *Index) Search(_ context.Context, _ string, artifact []byte, q []float32, k int) ([]vector.Hit, error) {
	if len(artifact) == 0 {
		return nil, entities.ErrNoIndex
	}
	m, err := decode(artifact)
	if err != nil {
		return nil, err
	}
	return m.Search(q, k)
}

// Remove is a no-op: the artifact lives in the bundle.
func (i *Index) Remove(context.Context, string) error {
	return nil
}

func decode(artifact []byte) (vector.Matrix, error) {
	if len(artifact) < 12 || !bytes.Equal(artifact[:4], magic[:]) {
		return vector.Matrix{}, errors.New("decoding flat index: bad header")
	}
	rows := int(binary.LittleEndian.Uint32(artifact[4:8]))
	dim := int(binary.LittleEndian.Uint32(artifact[8:12]))
	body := artifact[12:]
	if rows > len(body)/4 || dim > len(body)/4 {
		return vector.Matrix{}, errors.New("decoding flat index: bad dimensions")
	}
	m, err := vector.ReadMatrix(bytes.NewReader(body), int64(len(body)), rows, dim)
	if err != nil {
		return vector.Matrix{}, fmt.Errorf("decoding flat index: %w", err)
	}
	return m, nil
}
