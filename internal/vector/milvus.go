package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

const (
	fieldChunkID      = "chunk_id"
	fieldDocumentID   = "document_id"
	fieldOrdinal      = "ordinal"
	fieldEmbedding    = "embedding"
	fieldText         = "text"
	fieldTitle        = "title"
	fieldSection      = "section_title"
	fieldDocumentType = "document_type"
	fieldJurisdiction = "jurisdiction"
	fieldConcepts     = "concepts"
	fieldCitations    = "citations"
	fieldPage         = "page_number"
	fieldImportance   = "importance"
	fieldHasDate      = "has_date"
	fieldDate         = "date_published"

	milvusTextLimit = 65535
	// concept predicates are applied after the query, so over-fetch when they are set
	milvusConceptOverfetch = 4
)

var milvusOutputFields = []string{
	fieldChunkID, fieldDocumentID, fieldOrdinal, fieldText, fieldTitle, fieldSection,
	fieldDocumentType, fieldJurisdiction, fieldConcepts, fieldCitations, fieldPage,
	fieldImportance, fieldHasDate, fieldDate,
}

// MilvusConfig holds connection settings for a Milvus collection.
type MilvusConfig struct {
	Address    string
	Collection string
	Dimensions int
	Logger     *zap.Logger
}

// MilvusIndex stores chunk vectors in a Milvus collection using the COSINE metric.
// Document type, jurisdiction and publication date are scalar fields filtered server side.
type MilvusIndex struct {
	client     client.Client
	collection string
	dimensions int
	logger     *zap.Logger
}

// NewMilvusIndex connects, creates the collection and its HNSW index when missing, and loads it.
func NewMilvusIndex(ctx context.Context, cfg MilvusConfig) (*MilvusIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	c, err := client.NewGrpcClient(ctx, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}
	m := &MilvusIndex{
		client:     c,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		logger:     utils.OrNop(cfg.Logger),
	}
	if err := m.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	m.logger.Info("milvus vector index ready",
		zap.String("address", cfg.Address),
		zap.String("collection", cfg.Collection),
	)
	return m, nil
}

// Type returns the index type identifier.
func (m *MilvusIndex) Type() string {
	return string(BackendMilvus)
}

func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		if err := m.client.CreateCollection(ctx, milvusSchema(m.collection, m.dimensions), entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
		if err != nil {
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := m.client.CreateIndex(ctx, m.collection, fieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := m.client.LoadCollection(ctx, m.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

func milvusSchema(collection string, dimensions int) *entity.Schema {
	varchar := func(name string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": strconv.Itoa(maxLen)},
		}
	}
	pk := varchar(fieldChunkID, 256)
	pk.PrimaryKey = true
	return &entity.Schema{
		CollectionName: collection,
		Description:    "legal document chunk embeddings",
		Fields: []*entity.Field{
			pk,
			varchar(fieldDocumentID, 128),
			{Name: fieldOrdinal, DataType: entity.FieldTypeInt64},
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dimensions)},
			},
			varchar(fieldText, milvusTextLimit),
			varchar(fieldTitle, 1024),
			varchar(fieldSection, 1024),
			varchar(fieldDocumentType, 64),
			varchar(fieldJurisdiction, 64),
			varchar(fieldConcepts, 1024),
			varchar(fieldCitations, milvusTextLimit),
			{Name: fieldPage, DataType: entity.FieldTypeInt64},
			{Name: fieldImportance, DataType: entity.FieldTypeDouble},
			{Name: fieldHasDate, DataType: entity.FieldTypeBool},
			{Name: fieldDate, DataType: entity.FieldTypeInt64},
		},
	}
}

// Upsert deletes the previous rows of every document in the batch and inserts the new ones.
// Milvus has no multi-statement transaction, so readers may briefly see a document missing
// between the delete and the flush of the insert, never a mix of old and new rows.
func (m *MilvusIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", e.Key, len(e.Vector), m.dimensions)
		}
	}
	docIDs := documentIDs(entries)
	if err := m.client.Delete(ctx, m.collection, "", inExpr(fieldDocumentID, docIDs)); err != nil {
		return fmt.Errorf("failed to delete previous chunks: %w", err)
	}
	if _, err := m.client.Insert(ctx, m.collection, "", milvusColumns(entries, m.dimensions)...); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	if err := m.client.Flush(ctx, m.collection, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	m.logger.Debug("chunks upserted into milvus",
		zap.Int("count", len(entries)),
		zap.Strings("documents", docIDs),
	)
	return nil
}

// Search runs an HNSW query with the scalar filter expression, then applies concept predicates.
func (m *MilvusIndex) Search(ctx context.Context, query []float32, k int, filter *models.Filters) ([]Hit, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	topK := k
	if filter != nil && len(filter.Concepts) > 0 {
		topK = k * milvusConceptOverfetch
	}
	sp, err := entity.NewIndexHNSWSearchParam(max(64, topK))
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}
	results, err := m.client.Search(
		ctx,
		m.collection,
		[]string{},
		filterExpr(filter),
		milvusOutputFields,
		[]entity.Vector{entity.FloatVector(query)},
		fieldEmbedding,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]Hit, 0, k)
	for _, sr := range results {
		for i := 0; i < sr.ResultCount; i++ {
			chunk, err := decodeChunk(sr.Fields, i)
			if err != nil {
				return nil, err
			}
			if !filter.Match(chunk) {
				continue
			}
			hits = append(hits, Hit{Key: chunk.Ref(), Chunk: chunk, Similarity: clampUnit(float64(sr.Scores[i]))})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Get fetches one row by primary key, vector included.
func (m *MilvusIndex) Get(ctx context.Context, key Key) (*Entry, error) {
	fields := append([]string{fieldEmbedding}, milvusOutputFields...)
	cols, err := m.client.Query(ctx, m.collection, []string{}, inExpr(fieldChunkID, []string{key.String()}), fields)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", key, err)
	}
	idCol := column(cols, fieldChunkID)
	if idCol == nil || idCol.Len() == 0 {
		return nil, fmt.Errorf("vector %s: %w", key, models.ErrNotFound)
	}
	chunk, err := decodeChunk(cols, 0)
	if err != nil {
		return nil, err
	}
	var vec []float32
	if c := column(cols, fieldEmbedding); c != nil {
		if v, err := c.Get(0); err == nil {
			vec, _ = v.([]float32)
		}
	}
	return &Entry{Key: key, Vector: vec, Chunk: chunk}, nil
}

// DeleteDocument removes every row of the document.
func (m *MilvusIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if err := m.client.Delete(ctx, m.collection, "", inExpr(fieldDocumentID, []string{documentID})); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

// Size returns the collection row count, or 0 when statistics are unavailable.
func (m *MilvusIndex) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := m.client.GetCollectionStatistics(ctx, m.collection)
	if err != nil {
		m.logger.Warn("failed to read collection statistics", zap.Error(err))
		return 0
	}
	n, _ := strconv.Atoi(stats["row_count"])
	return n
}

// Save is a no-op; Milvus persists server side.
func (m *MilvusIndex) Save(path string) error { return nil }

// Load is a no-op; the collection is loaded on connect.
func (m *MilvusIndex) Load(path string) error { return nil }

// Close closes the client connection.
func (m *MilvusIndex) Close() error {
	return m.client.Close()
}

func documentIDs(entries []Entry) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if !seen[e.Key.DocumentID] {
			seen[e.Key.DocumentID] = true
			ids = append(ids, e.Key.DocumentID)
		}
	}
	return ids
}

func milvusColumns(entries []Entry, dimensions int) []entity.Column {
	n := len(entries)
	var (
		ids        = make([]string, n)
		docIDs     = make([]string, n)
		ordinals   = make([]int64, n)
		vectors    = make([][]float32, n)
		texts      = make([]string, n)
		titles     = make([]string, n)
		sections   = make([]string, n)
		docTypes   = make([]string, n)
		regions    = make([]string, n)
		concepts   = make([]string, n)
		citations  = make([]string, n)
		pages      = make([]int64, n)
		importance = make([]float64, n)
		hasDates   = make([]bool, n)
		dates      = make([]int64, n)
	)
	for i, e := range entries {
		c := e.Chunk
		ids[i] = e.Key.String()
		docIDs[i] = e.Key.DocumentID
		ordinals[i] = int64(e.Key.Ordinal)
		vectors[i] = e.Vector
		texts[i] = utils.Truncate(c.Text, milvusTextLimit-3)
		titles[i] = utils.Truncate(c.Title, 1021)
		sections[i] = utils.Truncate(c.SectionTitle, 1021)
		docTypes[i] = c.DocumentType
		regions[i] = c.Jurisdiction
		concepts[i] = encodeList(c.Concepts)
		citations[i] = encodeList(c.Citations)
		pages[i] = int64(c.PageNumber)
		importance[i] = c.ImportanceScore
		if c.DatePublished != nil {
			hasDates[i] = true
			dates[i] = c.DatePublished.Unix()
		}
	}
	return []entity.Column{
		entity.NewColumnVarChar(fieldChunkID, ids),
		entity.NewColumnVarChar(fieldDocumentID, docIDs),
		entity.NewColumnInt64(fieldOrdinal, ordinals),
		entity.NewColumnFloatVector(fieldEmbedding, dimensions, vectors),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldTitle, titles),
		entity.NewColumnVarChar(fieldSection, sections),
		entity.NewColumnVarChar(fieldDocumentType, docTypes),
		entity.NewColumnVarChar(fieldJurisdiction, regions),
		entity.NewColumnVarChar(fieldConcepts, concepts),
		entity.NewColumnVarChar(fieldCitations, citations),
		entity.NewColumnInt64(fieldPage, pages),
		entity.NewColumnDouble(fieldImportance, importance),
		entity.NewColumnBool(fieldHasDate, hasDates),
		entity.NewColumnInt64(fieldDate, dates),
	}
}

func column(cols []entity.Column, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

// decodeChunk rebuilds row i of a result set. Missing columns leave zero values.
func decodeChunk(cols []entity.Column, i int) (*models.Chunk, error) {
	get := func(name string) interface{} {
		c := column(cols, name)
		if c == nil {
			return nil
		}
		v, err := c.Get(i)
		if err != nil {
			return nil
		}
		return v
	}
	str := func(name string) string {
		s, _ := get(name).(string)
		return s
	}
	num := func(name string) int64 {
		n, _ := get(name).(int64)
		return n
	}

	chunk := &models.Chunk{
		DocumentID:   str(fieldDocumentID),
		Ordinal:      int(num(fieldOrdinal)),
		Text:         str(fieldText),
		Title:        str(fieldTitle),
		SectionTitle: str(fieldSection),
		DocumentType: str(fieldDocumentType),
		Jurisdiction: str(fieldJurisdiction),
		PageNumber:   int(num(fieldPage)),
	}
	if chunk.DocumentID == "" {
		return nil, fmt.Errorf("milvus row %d has no %s", i, fieldDocumentID)
	}
	chunk.ImportanceScore, _ = get(fieldImportance).(float64)
	chunk.Concepts = decodeList(str(fieldConcepts))
	chunk.Citations = decodeList(str(fieldCitations))
	chunk.WordCount = utils.WordCount(chunk.Text)
	chunk.CharCount = len([]rune(chunk.Text))
	if has, _ := get(fieldHasDate).(bool); has {
		t := time.Unix(num(fieldDate), 0).UTC()
		chunk.DatePublished = &t
	}
	return chunk, nil
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(s string) []string {
	var items []string
	if s == "" || json.Unmarshal([]byte(s), &items) != nil {
		return nil
	}
	return items
}

// filterExpr translates the scalar predicates of filter into a Milvus boolean expression.
// Concepts are matched after the query.
func filterExpr(filter *models.Filters) string {
	if filter.IsEmpty() {
		return ""
	}
	var parts []string
	if len(filter.DocumentTypes) > 0 {
		parts = append(parts, inExpr(fieldDocumentType, lowerAll(filter.DocumentTypes)))
	}
	if len(filter.Jurisdictions) > 0 {
		parts = append(parts, inExpr(fieldJurisdiction, lowerAll(filter.Jurisdictions)))
	}
	if filter.HasDateRange() {
		parts = append(parts, fieldHasDate+" == true")
		if filter.DateFrom != nil {
			parts = append(parts, fmt.Sprintf("%s >= %d", fieldDate, filter.DateFrom.Unix()))
		}
		if filter.DateTo != nil {
			parts = append(parts, fmt.Sprintf("%s <= %d", fieldDate, filter.DateTo.Unix()))
		}
	}
	return strings.Join(parts, " && ")
}

func inExpr(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return fmt.Sprintf("%s in [%s]", field, strings.Join(quoted, ", "))
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
