// Package qdrant provides a SimilarityIndex backed by Qdrant, one
// collection per entity.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/vector"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
)

// Kind is the backend name.
const Kind = "qdrant"

// Payload keys stored on each point.
const (
	payloadRow     = "row"
	payloadEntryID = "entry_id"
)

// Index implements ports.SimilarityIndex using Qdrant.
type Index struct {
	collections pb.CollectionsClient
	points      pb.PointsClient
	prefix      string
	conn        *grpc.ClientConn
}

// NewIndex connects to the configured Qdrant server.
func NewIndex(cfg config.QdrantConfig) (*Index, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	idx := newIndex(pb.NewCollectionsClient(conn), pb.NewPointsClient(conn), cfg.CollectionPrefix)
	idx.conn = conn
	return idx, nil
}

func newIndex(collections pb.CollectionsClient, points pb.PointsClient, prefix string) *Index {
	return &Index{collections: collections, points: points, prefix: prefix}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the gRPC connection.
func (x *Index) Close() error {
	if x.conn != nil {
		return x.conn.Close()
	}
	return nil
}

// Kind returns "qdrant".
func (x *Index) Kind() string {
	return Kind
}

// Collection returns the collection name of an entity.
func (x *Index) Collection(entityKey string) string {
	return config.CollectionName(x.prefix, entityKey)
}

// PointID returns the deterministic point id of an entry.
func PointID(entityKey, entryID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(entityKey+"/"+entryID)).String()
}

// Build recreates the entity's collection holding one point per row.
// The returned artifact is always nil.
func (x *Index) Build(ctx context.Context, entityKey string, ids []string, m vector.Matrix) ([]byte, error) {
	if len(ids) != m.Rows {
		return nil, fmt.Errorf("building qdrant index: %d ids for %d rows", len(ids), m.Rows)
	}
	if err := x.Remove(ctx, entityKey); err != nil {
		return nil, err
	}
	if m.Rows == 0 {
		return nil, nil
	}

	collection := x.Collection(entityKey)
	_, err := x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(m.Dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	points := make([]*pb.PointStruct, 0, m.Rows)
	for row, id := range ids {
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: PointID(entityKey, id),
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: append([]float32(nil), m.Row(row)...),
					},
				},
			},
			Payload: map[string]*pb.Value{
				payloadRow:     {Kind: &pb.Value_IntegerValue{IntegerValue: int64(row)}},
				payloadEntryID: {Kind: &pb.Value_StringValue{StringValue: id}},
			},
		})
	}

	wait := true
	_, err = x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return nil, fmt.Errorf("upserting points: %w", err)
	}
	return nil, nil
}

// Search queries the entity's collection. A missing collection yields
// entities.ErrNoIndex.
func (x *Index) Search(ctx context.Context, entityKey string, _ []byte, q []float32, k int) ([]vector.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.Collection(entityKey),
		Vector:         q,
		Limit:          uint64(k),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if status.Code(err) == codes.NotFound {
		return nil, entities.ErrNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	hits := make([]vector.Hit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		v, ok := p.GetPayload()[payloadRow]
		if !ok {
			continue
		}
		hits = append(hits, vector.Hit{Row: int(v.GetIntegerValue()), Score: p.GetScore()})
	}
	return vector.TopK(hits, k), nil
}

// Remove deletes the entity's collection. A missing collection is not an error.
func (x *Index) Remove(ctx context.Context, entityKey string) error {
	_, err := x.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: x.Collection(entityKey),
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}
