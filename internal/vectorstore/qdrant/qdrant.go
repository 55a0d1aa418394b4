package qdrant

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"voxrag/internal/vectorstore"
)

const payloadText = "text"

// Config contains connection details for a Qdrant vector store.
type Config struct {
	// URL is the gRPC endpoint, e.g. http://localhost:6334. https enables TLS.
	URL    string
	APIKey string
	// Timeout bounds each call that has no deadline of its own.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Storage stores each namespace in its own Qdrant collection.
type Storage struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	apiKey      string
	logger      *slog.Logger
}

// NewStorage connects to Qdrant. The connection is established lazily by gRPC.
func NewStorage(cfg Config) (*Storage, error) {
	addr, creds, err := dialTarget(cfg.URL)
	if err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithUnaryInterceptor(timeoutInterceptor(cfg.Timeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return newStorage(conn, cfg.APIKey, cfg.Logger), nil
}

func newStorage(conn *grpc.ClientConn, apiKey string, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		apiKey:      apiKey,
		logger:      logger,
	}
}

func timeoutInterceptor(d time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok && d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func dialTarget(raw string) (string, credentials.TransportCredentials, error) {
	if raw == "" {
		raw = "http://localhost:6334"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", nil, fmt.Errorf("invalid qdrant url %q", raw)
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		port = "6334"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", nil, fmt.Errorf("invalid qdrant port %q", port)
	}
	creds := insecure.NewCredentials()
	if u.Scheme == "https" {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return net.JoinHostPort(host, port), creds, nil
}

func (s *Storage) withAuth(ctx context.Context) context.Context {
	if s.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", s.apiKey)
}

func (s *Storage) exists(ctx context.Context, name string) (bool, error) {
	resp, err := s.collections.CollectionExists(s.withAuth(ctx), &pb.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return false, fmt.Errorf("qdrant collection exists %s: %w", name, err)
	}
	return resp.GetResult().GetExists(), nil
}

func (s *Storage) EnsureNamespace(ctx context.Context, name string, dimension int) error {
	ok, err := s.exists(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	_, err = s.collections.Create(s.withAuth(ctx), &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(dimension),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if status.Code(err) == codes.AlreadyExists {
		// Another worker created it first.
		return nil
	}
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", name, err)
	}
	s.logger.Info("Created qdrant collection", "collection", name, "dimension", dimension)
	return nil
}

func (s *Storage) Upsert(ctx context.Context, name string, entries []vectorstore.Entry) error {
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		payload := map[string]*pb.Value{
			payloadText: {Kind: &pb.Value_StringValue{StringValue: e.Text}},
		}
		for k, v := range e.Metadata {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: e.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}}},
			Payload: payload,
		}
	}
	wait := true
	_, err := s.points.Upsert(s.withAuth(ctx), &pb.UpsertPoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %s: %w", name, err)
	}
	s.logger.Debug("Upserted points", "collection", name, "count", len(points))
	return nil
}

// Refresh checks the collection is healthy. Upserts are issued with wait=true,
// so acknowledged points are already searchable.
func (s *Storage) Refresh(ctx context.Context, name string) error {
	resp, err := s.collections.Get(s.withAuth(ctx), &pb.GetCollectionInfoRequest{CollectionName: name})
	if err != nil {
		return fmt.Errorf("qdrant collection info %s: %w", name, err)
	}
	if st := resp.GetResult().GetStatus(); st == pb.CollectionStatus_Red {
		return fmt.Errorf("qdrant collection %s status %s", name, st)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, name string, vector []float32, topK int) ([]vectorstore.Hit, error) {
	resp, err := s.points.Search(s.withAuth(ctx), &pb.SearchPoints{
		CollectionName: name,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if ok, existsErr := s.exists(ctx, name); existsErr == nil && !ok {
			return nil, fmt.Errorf("search %s: %w", name, vectorstore.ErrNamespaceNotFound)
		}
		return nil, fmt.Errorf("qdrant search %s: %w", name, err)
	}

	hits := make([]vectorstore.Hit, len(resp.Result))
	for i, pt := range resp.Result {
		text := ""
		meta := make(map[string]string)
		for k, v := range pt.Payload {
			if k == payloadText {
				text = v.GetStringValue()
			} else {
				meta[k] = v.GetStringValue()
			}
		}
		hits[i] = vectorstore.Hit{
			ID:       pt.Id.GetUuid(),
			Text:     text,
			Metadata: meta,
			Score:    float64(pt.Score),
		}
	}
	return hits, nil
}

func (s *Storage) DeleteBySource(ctx context.Context, name, source string) error {
	ok, err := s.exists(ctx, name)
	if err != nil || !ok {
		return err
	}
	wait := true
	_, err = s.points.Delete(s.withAuth(ctx), &pb.DeletePoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: sourceFilter(source)}},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete %s from %s: %w", source, name, err)
	}
	return nil
}

func sourceFilter(source string) *pb.Filter {
	return &pb.Filter{Must: []*pb.Condition{{
		ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   vectorstore.MetaSource,
			Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: source}},
		}},
	}}}
}

func (s *Storage) Close() error {
	if err := s.conn.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

var _ vectorstore.Storage = (*Storage)(nil)
