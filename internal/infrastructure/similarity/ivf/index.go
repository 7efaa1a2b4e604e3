// Package ivf provides an inverted-file approximate similarity index:
// rows are clustered around k-means centroids and a query only scores the
// rows of its nprobe closest clusters.
package ivf

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
const Kind = "ivf"

// Defaults used when the configured values are not positive.
const (
	DefaultNList  = 16
	DefaultNProbe = 4
	maxIterations = 10
)

var magic = [4]byte{'I', 'V', 'F', '1'}

// Index builds and searches inverted-file artifacts.
type Index struct {
	nlist  int
	nprobe int
}

// New returns an index with nlist clusters probing nprobe of them per query.
func New(nlist, nprobe int) *Index {
	if nlist <= 0 {
		nlist = DefaultNList
	}
	if nprobe <= 0 {
		nprobe = DefaultNProbe
	}
	return &Index{nlist: nlist, nprobe: nprobe}
}

// Kind returns "ivf".
func (i *Index) Kind() string {
	return Kind
}

// layout is the decoded artifact.
type layout struct {
	centroids vector.Matrix
	lists     [][]uint32
	data      vector.Matrix
}

// Build clusters the rows of m and serializes the result.
func (i *Index) Build(_ context.Context, _ string, ids []string, m vector.Matrix) ([]byte, error) {
	if len(ids) != m.Rows {
		return nil, fmt.Errorf("building ivf index: %d ids for %d rows", len(ids), m.Rows)
	}
	if m.Rows == 0 {
		return nil, nil
	}

	centroids, assign := kmeans(m, min(i.nlist, m.Rows))
	lists := make([][]uint32, centroids.Rows)
	for row, c := range assign {
		lists[c] = append(lists[c], uint32(row))
	}
	return encode(layout{centroids: centroids, lists: lists, data: m})
}

// Search scores the rows of the nprobe clusters closest to q.
func (i *Index) Search(_ context.Context, _ string, artifact []byte, q []float32, k int) ([]vector.Hit, error) {
	if len(artifact) == 0 {
		return nil, entities.ErrNoIndex
	}
	l, err := decode(artifact)
	if err != nil {
		return nil, err
	}

	probes, err := l.centroids.Search(q, i.nprobe)
	if err != nil {
		return nil, err
	}

	var hits []vector.Hit
	for _, p := range probes {
		for _, row := range l.lists[p.Row] {
			s, err := vector.Dot(l.data.Row(int(row)), q)
			if err != nil {
				return nil, err
			}
			hits = append(hits, vector.Hit{Row: int(row), Score: s})
		}
	}
	return vector.TopK(hits, k), nil
}

// Remove is a no-op: the artifact lives in the bundle.
func (i *Index) Remove(context.Context, string) error {
	return nil
}

// kmeans runs spherical k-means with centroids seeded from evenly spaced
// rows. It returns the centroids and the cluster of each row.
func kmeans(m vector.Matrix, n int) (vector.Matrix, []int) {
	centroids := vector.NewMatrix(n, m.Dim)
	for c := 0; c < n; c++ {
		copy(centroids.Row(c), m.Row(c*m.Rows/n))
	}

	assign := make([]int, m.Rows)
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for row := 0; row < m.Rows; row++ {
			scores, _ := centroids.Scores(m.Row(row))
			best := 0
			for c, s := range scores {
				if s > scores[best] {
					best = c
				}
			}
			if iter == 0 || assign[row] != best {
				changed = true
			}
			assign[row] = best
		}
		if !changed {
			break
		}

		sums := vector.NewMatrix(n, m.Dim)
		counts := make([]int, n)
		for row, c := range assign {
			counts[c]++
			dst := sums.Row(c)
			for d, v := range m.Row(row) {
				dst[d] += v
			}
		}
		for c := 0; c < n; c++ {
			// Empty clusters keep their previous centroid.
			if counts[c] == 0 {
				continue
			}
			copy(centroids.Row(c), sums.Row(c))
		}
		centroids.NormalizeRows()
	}
	return centroids, assign
}

func encode(l layout) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	header := [3]uint32{uint32(l.data.Dim), uint32(l.centroids.Rows), uint32(l.data.Rows)}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if err := vector.WriteMatrix(&buf, l.centroids); err != nil {
		return nil, err
	}
	for _, list := range l.lists {
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(list))); err != nil {
			return nil, fmt.Errorf("writing list: %w", err)
		}
		if err := binary.Write(&buf, binary.LittleEndian, list); err != nil {
			return nil, fmt.Errorf("writing list: %w", err)
		}
	}
	if err := vector.WriteMatrix(&buf, l.data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(artifact []byte) (layout, error) {
	if len(artifact) < 16 || !bytes.Equal(artifact[:4], magic[:]) {
		return layout{}, errors.New("decoding ivf index: bad header")
	}
	dim := int(binary.LittleEndian.Uint32(artifact[4:8]))
	nlist := int(binary.LittleEndian.Uint32(artifact[8:12]))
	rows := int(binary.LittleEndian.Uint32(artifact[12:16]))
	if dim == 0 || nlist == 0 || nlist > rows || rows > len(artifact)/4 || dim > len(artifact)/4 {
		return layout{}, errors.New("decoding ivf index: bad dimensions")
	}
	r := bytes.NewReader(artifact[16:])

	centroids, err := vector.ReadMatrix(r, int64(nlist*dim*4), nlist, dim)
	if err != nil {
		return layout{}, fmt.Errorf("decoding ivf centroids: %w", err)
	}

	lists := make([][]uint32, nlist)
	for c := range lists {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return layout{}, fmt.Errorf("decoding ivf list: %w", err)
		}
		if int(n) > rows {
			return layout{}, fmt.Errorf("decoding ivf list: %d entries for %d rows", n, rows)
		}
		lists[c] = make([]uint32, n)
		if err := binary.Read(r, binary.LittleEndian, lists[c]); err != nil {
			return layout{}, fmt.Errorf("decoding ivf list: %w", err)
		}
		for _, row := range lists[c] {
			if int(row) >= rows {
				return layout{}, fmt.Errorf("decoding ivf list: row %d out of range", row)
			}
		}
	}

	data, err := vector.ReadMatrix(r, int64(r.Len()), rows, dim)
	if err != nil {
		return layout{}, fmt.Errorf("decoding ivf data: %w", err)
	}
	return layout{centroids: centroids, lists: lists, data: data}, nil
}
