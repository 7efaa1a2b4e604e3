package vector

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteMatrix writes m's values as little-endian float32.
func WriteMatrix(w io.Writer, m Matrix) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if len(m.Data) == 0 {
		return nil
	}
	if err := binary.Write(w, binary.LittleEndian, m.Data); err != nil {
		return fmt.Errorf("writing vectors: %w", err)
	}
	return nil
}

// ReadMatrix reads a rows x dim matrix of little-endian float32 values.
// size is the byte length available from r and must match exactly.
func ReadMatrix(r io.Reader, size int64, rows, dim int) (Matrix, error) {
	if size%4 != 0 {
		return Matrix{}, fmt.Errorf("vector data size is not multiple of 4 bytes: %d", size)
	}
	expected := int64(rows) * int64(dim) * 4
	if expected != size {
		return Matrix{}, fmt.Errorf("vector data size mismatch: got %d want %d (rows=%d dim=%d)", size, expected, rows, dim)
	}
	m := NewMatrix(rows, dim)
	if len(m.Data) == 0 {
		return m, nil
	}
	if err := binary.Read(io.LimitReader(r, expected), binary.LittleEndian, m.Data); err != nil {
		return Matrix{}, fmt.Errorf("reading vectors: %w", err)
	}
	return m, nil
}
