// Command reindex loads every metadata corpus and upserts its records into
// the vector index, the offline step the retrieval package's dense side
// needs before Hybrid.Search can return anything.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"reactsql-mimic/internal/embed"
	"reactsql-mimic/internal/logger"
	"reactsql-mimic/internal/metadata"
	"reactsql-mimic/internal/retrieval"
	"reactsql-mimic/internal/vectorindex"
)

var docTypes = []string{
	"schema", "example", "template", "glossary",
	"diagnosis_map", "procedure_map", "column_value", "label_intent",
}

func main() {
	metadataDir := flag.String("metadata-dir", "var/metadata", "Metadata catalog directory")
	qdrantURL := flag.String("qdrant-url", "", "Qdrant base URL; empty uses the in-memory index")
	qdrantCollection := flag.String("qdrant-collection", "mimic_rag", "Qdrant collection name")
	embeddingDim := flag.Int("embedding-dim", 384, "Embedding vector dimension (rag_embedding_dim)")
	storePath := flag.String("store-path", "var/rag/simple_store.json", "Fallback vector store snapshot path (only used without -qdrant-url)")
	flag.Parse()

	log := logger.NewLogger(len(docTypes))

	catalog := metadata.NewCatalog()
	if err := catalog.LoadAll(*metadataDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load metadata catalog: %v\n", err)
		os.Exit(1)
	}
	corpus := retrieval.CatalogCorpus{Catalog: catalog}
	embedder := embed.NewHashedEmbedder(*embeddingDim)

	ctx := context.Background()
	var index vectorindex.Index
	var memIndex *vectorindex.MemoryIndex
	if *qdrantURL != "" {
		idx, err := vectorindex.NewQdrantIndex(ctx, vectorindex.QdrantConfig{
			URL: *qdrantURL, Collection: *qdrantCollection, VectorDim: *embeddingDim, Timeout: 10 * time.Second,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to qdrant: %v\n", err)
			os.Exit(1)
		}
		defer idx.Close()
		index = idx
	} else {
		memIndex = vectorindex.NewMemoryIndex()
		if err := memIndex.LoadFromFile(*storePath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load existing fallback store: %v\n", err)
			os.Exit(1)
		}
		index = memIndex
	}

	log.SetPhase("Reindexing metadata corpora")
	var total int
	for _, docType := range docTypes {
		log.StartTask(docType)
		docs := corpus.DocumentsByType(docType)
		points := make([]vectorindex.Point, 0, len(docs))
		for _, doc := range docs {
			vec, err := embedder.Embed(ctx, doc.Text)
			if err != nil {
				log.FailTask(docType, err)
				continue
			}
			payload := map[string]any{"type": docType, "text": doc.Text}
			for k, v := range doc.Metadata {
				payload[k] = v
			}
			points = append(points, vectorindex.Point{ID: doc.ID, Vector: vec, Payload: payload})
		}
		if err := index.Upsert(ctx, points); err != nil {
			log.FailTask(docType, err)
			continue
		}
		total += len(points)
		log.CompleteTask(docType)
	}

	if memIndex != nil {
		if err := memIndex.SaveToFile(*storePath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to save fallback store: %v\n", err)
			os.Exit(1)
		}
	}

	log.PrintSummary()
	fmt.Printf("indexed %d documents across %d types\n", total, len(docTypes))
}
