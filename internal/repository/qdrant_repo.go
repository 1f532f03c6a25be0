package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 1024

	payloadDocumentID = "document_id"
	payloadTitle      = "title"
	payloadURI        = "uri"
	payloadChunk      = "chunk"
	payloadText       = "text"
)

// passageNamespace seeds deterministic point ids so re-ingestion overwrites.
var passageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("pokedex/passages"))

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository stores embedded document passages in a Qdrant collection.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository connects to local Qdrant (insecure) or Qdrant Cloud (TLS + API key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist and checks its vector size if it does.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(r.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:           optionalUint64(16),
			EfConstruct: optionalUint64(128),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collectionName,
		FieldName:      payloadDocumentID,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", payloadDocumentID, err)
	}
	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if single := vectors.GetParams(); single != nil && single.GetSize() > 0 {
		return single.GetSize(), true
	}
	for _, params := range vectors.GetParamsMap().GetMap() {
		if size := params.GetSize(); size > 0 {
			return size, true
		}
	}
	return 0, false
}

// PassagePoint is one embedded chunk of a document.
type PassagePoint struct {
	DocumentID string
	Title      string
	URI        string
	Chunk      int
	Text       string
	Vector     []float32
}

// PassageMatch is a passage returned by similarity search.
type PassageMatch struct {
	DocumentID string
	Title      string
	URI        string
	Text       string
	Score      float32
}

// PassagePointID derives the deterministic point id of a document chunk.
func PassagePointID(documentID string, chunk int) string {
	return uuid.NewSHA1(passageNamespace, []byte(documentID+"#"+strconv.Itoa(chunk))).String()
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// ReplaceDocument drops every stored chunk of documentID and writes points in its place.
func (r *QdrantRepository) ReplaceDocument(ctx context.Context, documentID string, points []PassagePoint) error {
	if err := r.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	structs := make([]*pb.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PassagePointID(documentID, p.Chunk)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: p.Vector}},
			},
			Payload: map[string]*pb.Value{
				payloadDocumentID: stringValue(documentID),
				payloadTitle:      stringValue(p.Title),
				payloadURI:        stringValue(p.URI),
				payloadText:       stringValue(p.Text),
				payloadChunk:      {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.Chunk)}},
			},
		})
	}

	wait := true
	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert passages for %s: %w", documentID, err)
	}
	return nil
}

func documentFilter(documentID string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: payloadDocumentID,
						Match: &pb.Match{
							MatchValue: &pb.Match_Keyword{Keyword: documentID},
						},
					},
				},
			},
		},
	}
}

// DeleteDocument removes every chunk stored for documentID.
func (r *QdrantRepository) DeleteDocument(ctx context.Context, documentID string) error {
	wait := true
	_, err := r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: documentFilter(documentID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete passages for %s: %w", documentID, err)
	}
	return nil
}

// Search returns the topK passages closest to vector.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int) ([]PassageMatch, error) {
	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]PassageMatch, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		payload := scored.GetPayload()
		matches = append(matches, PassageMatch{
			DocumentID: payload[payloadDocumentID].GetStringValue(),
			Title:      payload[payloadTitle].GetStringValue(),
			URI:        payload[payloadURI].GetStringValue(),
			Text:       payload[payloadText].GetStringValue(),
			Score:      scored.GetScore(),
		})
	}
	return matches, nil
}
