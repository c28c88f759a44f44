// Package qdrant serves KNN queries from Qdrant over gRPC.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/kailas-cloud/ragd/internal/db"
)

var _ db.Store = (*Store)(nil)

// Payload keys written by LangChain's Qdrant integration, with a flat fallback.
const (
	payloadPageContent = "page_content"
	payloadContent     = "content"
	payloadMetadata    = "metadata"
)

type pointsClient interface {
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
}

type healthClient interface {
	HealthCheck(ctx context.Context, in *pb.HealthCheckRequest, opts ...grpc.CallOption) (*pb.HealthCheckReply, error)
}

// Config holds connection parameters.
type Config struct {
	Addr   string // host:port of the gRPC endpoint (6334 by default)
	APIKey string
}

// Store implements db.Store using Qdrant.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
	health      healthClient
}

// NewStore dials lazily; the first RPC establishes the connection.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required")
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		health:      pb.NewQdrantClient(conn),
	}, nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Ping checks connectivity via the Qdrant health RPC.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.health.HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the gRPC connection.
func (s *Store) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// WaitForReady blocks until Qdrant answers pings or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, timeout)
}

// SearchKNN converts Qdrant cosine scores into distances (1 - score), nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.Collection,
		Vector:         q.Vector,
		Limit:          uint64(q.K),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpQdrantQuery, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		content, md := splitPayload(pt.GetPayload())
		mdJSON, err := json.Marshal(md)
		if err != nil {
			return nil, &db.Error{Op: db.OpQdrantQuery, Err: fmt.Errorf("encode payload: %w", err)}
		}
		entries = append(entries, db.SearchEntry{
			Key:      pointID(pt.GetId()),
			Distance: 1 - float64(pt.GetScore()),
			Fields: map[string]string{
				db.FieldContent:  content,
				db.FieldMetadata: string(mdJSON),
			},
		})
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// ListCollections returns collection names sorted alphabetically.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	resp, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return nil, &db.Error{Op: db.OpQdrantList, Err: err}
	}
	names := make([]string, 0, len(resp.GetCollections()))
	for _, c := range resp.GetCollections() {
		names = append(names, c.GetName())
	}
	sort.Strings(names)
	return names, nil
}

func splitPayload(payload map[string]*pb.Value) (string, map[string]any) {
	content := payload[payloadPageContent].GetStringValue()
	if content == "" {
		content = payload[payloadContent].GetStringValue()
	}

	if nested, ok := payload[payloadMetadata]; ok && nested.GetStructValue() != nil {
		if m, ok := toAny(nested).(map[string]any); ok {
			return content, m
		}
	}

	md := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == payloadPageContent || k == payloadContent {
			continue
		}
		md[k] = toAny(v)
	}
	return content, md
}

func toAny(v *pb.Value) any {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	case *pb.Value_StructValue:
		m := make(map[string]any, len(k.StructValue.GetFields()))
		for key, fv := range k.StructValue.GetFields() {
			m[key] = toAny(fv)
		}
		return m
	case *pb.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for _, lv := range k.ListValue.GetValues() {
			out = append(out, toAny(lv))
		}
		return out
	default:
		return nil
	}
}

func pointID(id *pb.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
