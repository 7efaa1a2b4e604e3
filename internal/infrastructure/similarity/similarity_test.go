package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/farmlog/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		kind     string
		wantKind string
		wantErr  bool
	}{
		{kind: "", wantKind: "flat"},
		{kind: "flat", wantKind: "flat"},
		{kind: "IVF", wantKind: "ivf"},
		{kind: "qdrant", wantKind: "qdrant"},
		{kind: "none"},
		{kind: "faiss", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			idx, closer, err := New(config.SimilarityConfig{Kind: tt.kind}, config.Default().Qdrant)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = closer.Close() })
			if tt.wantKind == "" {
				assert.Nil(t, idx)
				return
			}
			require.NotNil(t, idx)
			assert.Equal(t, tt.wantKind, idx.Kind())
		})
	}
}
