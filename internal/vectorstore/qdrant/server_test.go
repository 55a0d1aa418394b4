package qdrant

import (
	"context"
	"net"
	"sync"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"voxrag/internal/vectorstore"
)

// fakeQdrant keeps collections in memory and returns points in insertion order.
type fakeQdrant struct {
	mu       sync.Mutex
	created  map[string]uint64
	points   map[string][]*pb.PointStruct
	apiKeys  []string
	lastWait bool
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{created: map[string]uint64{}, points: map[string][]*pb.PointStruct{}}
}

type collectionsServer struct {
	pb.UnimplementedCollectionsServer
	f *fakeQdrant
}

type pointsServer struct {
	pb.UnimplementedPointsServer
	f *fakeQdrant
}

func (f *fakeQdrant) record(ctx context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.apiKeys = append(f.apiKeys, md.Get("api-key")...)
}

func (c collectionsServer) CollectionExists(ctx context.Context, req *pb.CollectionExistsRequest) (*pb.CollectionExistsResponse, error) {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	_, ok := f.created[req.GetCollectionName()]
	return &pb.CollectionExistsResponse{Result: &pb.CollectionExists{Exists: ok}}, nil
}

func (c collectionsServer) Create(ctx context.Context, req *pb.CreateCollection) (*pb.CollectionOperationResponse, error) {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	if _, ok := f.created[req.GetCollectionName()]; ok {
		return nil, status.Error(codes.AlreadyExists, "collection exists")
	}
	f.created[req.GetCollectionName()] = req.GetVectorsConfig().GetParams().GetSize()
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (c collectionsServer) Get(ctx context.Context, req *pb.GetCollectionInfoRequest) (*pb.GetCollectionInfoResponse, error) {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	if _, ok := f.created[req.GetCollectionName()]; !ok {
		return nil, status.Error(codes.NotFound, "collection not found")
	}
	return &pb.GetCollectionInfoResponse{Result: &pb.CollectionInfo{Status: pb.CollectionStatus_Green}}, nil
}

func (p pointsServer) Upsert(ctx context.Context, req *pb.UpsertPoints) (*pb.PointsOperationResponse, error) {
	f := p.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	if _, ok := f.created[req.GetCollectionName()]; !ok {
		return nil, status.Error(codes.NotFound, "collection not found")
	}
	f.lastWait = req.GetWait()
	f.points[req.GetCollectionName()] = append(f.points[req.GetCollectionName()], req.GetPoints()...)
	return &pb.PointsOperationResponse{Result: &pb.UpdateResult{Status: pb.UpdateStatus_Completed}}, nil
}

func (p pointsServer) Search(ctx context.Context, req *pb.SearchPoints) (*pb.SearchResponse, error) {
	f := p.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	if _, ok := f.created[req.GetCollectionName()]; !ok {
		return nil, status.Error(codes.NotFound, "collection not found")
	}
	var result []*pb.ScoredPoint
	for i, p := range f.points[req.GetCollectionName()] {
		if uint64(i) >= req.GetLimit() {
			break
		}
		sp := &pb.ScoredPoint{Id: p.GetId(), Score: 1 - 0.1*float32(i)}
		if req.GetWithPayload().GetEnable() {
			sp.Payload = p.GetPayload()
		}
		result = append(result, sp)
	}
	return &pb.SearchResponse{Result: result}, nil
}

func newFakeStorage(t *testing.T, apiKey string) (*Storage, *fakeQdrant) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	fake := newFakeQdrant()
	pb.RegisterPointsServer(srv, pointsServer{f: fake})
	pb.RegisterCollectionsServer(srv, collectionsServer{f: fake})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	s := newStorage(conn, apiKey, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s, fake
}

func TestStorageRoundTripMapsPayload(t *testing.T) {
	t.Parallel()
	s, fake := newFakeStorage(t, "secret")
	ctx := context.Background()

	require.NoError(t, s.EnsureNamespace(ctx, "manuals", 3))
	require.NoError(t, s.EnsureNamespace(ctx, "manuals", 3))
	fake.mu.Lock()
	assert.Equal(t, uint64(3), fake.created["manuals"])
	fake.mu.Unlock()

	entries := []vectorstore.Entry{
		{
			ID:       "6f1c2a54-3c1b-4b8e-9d55-0d7d3c1e9a01",
			Text:     "Reset the pump.",
			Vector:   []float32{1, 0, 0},
			Metadata: map[string]string{vectorstore.MetaSource: "/docs/a.pdf", vectorstore.MetaPage: "1", vectorstore.MetaIndex: "0"},
		},
		{
			ID:       "6f1c2a54-3c1b-4b8e-9d55-0d7d3c1e9a02",
			Text:     "Check the valve.",
			Vector:   []float32{0, 1, 0},
			Metadata: map[string]string{vectorstore.MetaSource: "/docs/a.pdf", vectorstore.MetaPage: "2", vectorstore.MetaIndex: "1"},
		},
	}
	require.NoError(t, s.Upsert(ctx, "manuals", entries))
	require.NoError(t, s.Refresh(ctx, "manuals"))

	fake.mu.Lock()
	stored := fake.points["manuals"]
	assert.True(t, fake.lastWait)
	fake.mu.Unlock()
	require.Len(t, stored, 2)
	assert.Equal(t, entries[0].ID, stored[0].GetId().GetUuid())
	assert.Equal(t, []float32{1, 0, 0}, stored[0].GetVectors().GetVector().GetData())
	payload := stored[0].GetPayload()
	assert.Len(t, payload, 4)
	assert.Equal(t, "Reset the pump.", payload[payloadText].GetStringValue())
	assert.Equal(t, "/docs/a.pdf", payload[vectorstore.MetaSource].GetStringValue())
	assert.Equal(t, "1", payload[vectorstore.MetaPage].GetStringValue())

	hits, err := s.Search(ctx, "manuals", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, entries[0].ID, hits[0].ID)
	assert.Equal(t, "Reset the pump.", hits[0].Text)
	assert.Equal(t, entries[0].Metadata, hits[0].Metadata)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	unit := vectorstore.UnitFromHit(hits[1])
	assert.Equal(t, "/docs/a.pdf", unit.Source)
	assert.Equal(t, 2, unit.Page)
	assert.Equal(t, 1, unit.Index)
	assert.Equal(t, "Check the valve.", unit.Content)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.NotEmpty(t, fake.apiKeys)
	for _, k := range fake.apiKeys {
		assert.Equal(t, "secret", k)
	}
}

func TestStorageSearchMissingCollection(t *testing.T) {
	t.Parallel()
	s, _ := newFakeStorage(t, "")

	_, err := s.Search(context.Background(), "missing", []float32{1, 0, 0}, 3)
	assert.ErrorIs(t, err, vectorstore.ErrNamespaceNotFound)
	assert.Error(t, s.Refresh(context.Background(), "missing"))
}
