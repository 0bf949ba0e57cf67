package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"alfredoptarigan/rubric-evaluator/internal/config"
	"alfredoptarigan/rubric-evaluator/internal/models"
)

const (
	indexChunkSize    = 2000
	indexChunkOverlap = 200
	// maxGroupVectors bounds how many of a group's own chunks are used as queries.
	maxGroupVectors = 32
	excerptLength   = 300
)

// SubmissionIndex keeps embeddings of analysed submissions so groups of the
// same evaluation can be compared with each other.
type SubmissionIndex interface {
	InitCollection(ctx context.Context) error
	IndexSubmission(ctx context.Context, evaluationID, groupID, submissionID uuid.UUID, text string) error
	FindSimilar(ctx context.Context, evaluationID, groupID uuid.UUID, limit int) ([]models.SimilarGroup, error)
	RemoveEvaluation(ctx context.Context, evaluationID uuid.UUID) error
}

type qdrantIndex struct {
	client         *qdrant.Client
	embedder       Embedder
	chunker        TextChunker
	collectionName string
	vectorSize     uint64
}

func NewSubmissionIndex(cfg config.QdrantConfig, embedder Embedder) (SubmissionIndex, error) {
	// Parse URL to extract host, port, and TLS usage
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// gRPC port
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantIndex{
		client:         client,
		embedder:       embedder,
		chunker:        NewTextChunker(),
		collectionName: cfg.Collection,
		vectorSize:     cfg.VectorSize,
	}, nil
}

func (q *qdrantIndex) InitCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		log.Printf("✅ Qdrant collection '%s' already exists", q.collectionName)
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("✅ Qdrant collection '%s' created successfully", q.collectionName)
	return nil
}

// IndexSubmission replaces the group's vectors with the chunks of text.
func (q *qdrantIndex) IndexSubmission(ctx context.Context, evaluationID, groupID, submissionID uuid.UUID, text string) error {
	if err := q.deleteWhere(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("group_id", groupID.String()),
		},
	}); err != nil {
		return err
	}

	chunks := q.chunker.ChunkWithOverlap(text, indexChunkSize, indexChunkOverlap)
	points := make([]*qdrant.PointStruct, 0, len(chunks))

	for i, chunk := range chunks {
		embedding, err := q.embedder.GenerateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d: %w", i+1, err)
		}

		pointID := uuid.NewSHA1(submissionID, []byte(strconv.Itoa(i)))
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID.String()),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"evaluation_id": evaluationID.String(),
				"group_id":      groupID.String(),
				"submission_id": submissionID.String(),
				"chunk_index":   i + 1,
				"text":          chunk,
			}),
		})
	}

	if len(points) == 0 {
		return nil
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	log.Printf("💾 Indexed %d chunks for submission %s", len(points), submissionID)
	return nil
}

// FindSimilar queries the collection with each of the group's own chunk
// vectors and ranks the other groups of the evaluation by their best match.
func (q *qdrantIndex) FindSimilar(ctx context.Context, evaluationID, groupID uuid.UUID, limit int) ([]models.SimilarGroup, error) {
	if limit <= 0 {
		limit = 5
	}

	own, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("evaluation_id", evaluationID.String()),
				qdrant.NewMatch("group_id", groupID.String()),
			},
		},
		Limit:       qdrant.PtrOf(uint32(maxGroupVectors)),
		WithVectors: qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load group vectors: %w", err)
	}

	others := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("evaluation_id", evaluationID.String()),
		},
		MustNot: []*qdrant.Condition{
			qdrant.NewMatch("group_id", groupID.String()),
		},
	}

	var hits []similarHit
	for _, point := range own {
		vector := point.GetVectors().GetVector().GetData()
		if len(vector) == 0 {
			continue
		}

		scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.collectionName,
			Query:          qdrant.NewQuery(vector...),
			Filter:         others,
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search: %w", err)
		}

		for _, sp := range scored {
			payload := sp.GetPayload()
			hits = append(hits, similarHit{
				GroupID: payload["group_id"].GetStringValue(),
				Score:   sp.GetScore(),
				Text:    payload["text"].GetStringValue(),
				Chunk:   int(payload["chunk_index"].GetIntegerValue()),
			})
		}
	}

	return rankSimilar(hits, limit), nil
}

func (q *qdrantIndex) RemoveEvaluation(ctx context.Context, evaluationID uuid.UUID) error {
	return q.deleteWhere(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("evaluation_id", evaluationID.String()),
		},
	})
}

func (q *qdrantIndex) deleteWhere(ctx context.Context, filter *qdrant.Filter) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: filter,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

type similarHit struct {
	GroupID string
	Score   float32
	Text    string
	Chunk   int
}

// rankSimilar keeps the best hit per group and orders groups by score.
func rankSimilar(hits []similarHit, limit int) []models.SimilarGroup {
	best := make(map[string]similarHit)
	for _, h := range hits {
		if h.GroupID == "" {
			continue
		}
		if cur, ok := best[h.GroupID]; !ok || h.Score > cur.Score {
			best[h.GroupID] = h
		}
	}

	ranked := make([]models.SimilarGroup, 0, len(best))
	for _, h := range best {
		ranked = append(ranked, models.SimilarGroup{
			GroupID: h.GroupID,
			Score:   h.Score,
			Excerpt: getFirstNChars(h.Text, excerptLength),
			Chunk:   h.Chunk,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].GroupID < ranked[j].GroupID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func getFirstNChars(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
