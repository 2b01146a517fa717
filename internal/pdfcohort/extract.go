// Package pdfcohort implements the PDF-driven cohort definition pipeline:
// extract eligibility criteria from a study PDF, turn them into a cohort
// intent, compile the intent into an Oracle CTE cascade, verify it
// against the schema catalog, execute it, relax the intent when the result
// comes back empty, and fall back to an LLM patient-level rewrite when it
// comes back aggregate-only. PDF text/image extraction itself is an external-boundary
// concern (no PDF library appears anywhere in the retrieved corpus);
// this package defines the extraction interfaces and implements
// everything behind them.
package pdfcohort

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"reactsql-mimic/internal/apperr"
)

// TableAsset is one table extracted from a PDF page.
type TableAsset struct {
	Page    int        `json:"page"`
	Content [][]string `json:"content"`
}

// FigureAsset is one figure/image extracted from a PDF page, already
// described by a vision model; describing the raw bytes is the caller's
// concern.
type FigureAsset struct {
	Page        int    `json:"page"`
	Description string `json:"description"`
}

// Assets bundles the non-text material pulled from a PDF alongside its
// body text.
type Assets struct {
	Tables  []TableAsset
	Figures []FigureAsset
}

// TextExtractor pulls structured page text out of a PDF's raw bytes.
// File parsing itself lives behind this interface so the pipeline can be
// driven with canned text in tests.
type TextExtractor interface {
	ExtractText(ctx context.Context, fileContent []byte) (string, error)
}

// AssetExtractor pulls tables/figures out of a PDF's raw bytes.
type AssetExtractor interface {
	ExtractAssets(ctx context.Context, fileContent []byte) (Assets, error)
}

// Extraction is the joined result of running both extractors.
type Extraction struct {
	FullText string
	Assets   Assets
}

// Extract runs TextExtractor and AssetExtractor concurrently and joins
// their results. The first error from either goroutine wins; both always
// run to completion.
func Extract(ctx context.Context, text TextExtractor, asset AssetExtractor, fileContent []byte) (Extraction, error) {
	var (
		mu  sync.Mutex
		out Extraction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fullText, err := text.ExtractText(gctx, fileContent)
		if err != nil {
			return apperr.Wrap(apperr.KindUpstreamError, "pdf text extraction failed", err)
		}
		mu.Lock()
		out.FullText = fullText
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		assets, err := asset.ExtractAssets(gctx, fileContent)
		if err != nil {
			return apperr.Wrap(apperr.KindUpstreamError, "pdf asset extraction failed", err)
		}
		mu.Lock()
		out.Assets = assets
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return Extraction{}, err
	}
	return out, nil
}

// SummarizeAssets renders extracted tables/figures as prompt text for
// the condition-extraction agent: raw tables, figure descriptions, and a
// figure count (describing each figure via vision is costed once by the
// AssetExtractor implementation, not repeated here).
func SummarizeAssets(assets Assets) string {
	if len(assets.Tables) == 0 && len(assets.Figures) == 0 {
		return ""
	}
	var b []byte
	appendStr := func(s string) { b = append(b, s...) }

	if len(assets.Tables) > 0 {
		appendStr("\n## EXTRACTED TABLES\n")
		for _, t := range assets.Tables {
			appendStr(renderTable(t))
		}
	}
	if len(assets.Figures) > 0 {
		appendStr("\n## EXTRACTED FIGURES\n")
		for _, f := range assets.Figures {
			if f.Description == "" {
				continue
			}
			appendStr(f.Description)
			appendStr("\n")
		}
	}
	return string(b)
}

func renderTable(t TableAsset) string {
	s := "### Table (page " + strconv.Itoa(t.Page) + ")\n"
	for _, row := range t.Content {
		for i, cell := range row {
			if i > 0 {
				s += " | "
			}
			s += cell
		}
		s += "\n"
	}
	return s
}
