package pdfcohort

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"reactsql-mimic/internal/kvstore"
)

var (
	pageMarkerRE = regexp.MustCompile(`\[page \d+, block \d+\]`)
	pageBannerRE = regexp.MustCompile(`=== page \d+ ===`)
	nonWordRE    = regexp.MustCompile(`[^a-z0-9가-힣]`)
	multiSpaceRE = regexp.MustCompile(`\s+`)
)

// Canonicalize normalizes PDF-extracted text the same way
// _canonicalize_text does: lowercase, drop page markers/banners, collapse
// everything but letters/digits/Hangul to spaces, collapse whitespace.
// This makes the cache robust to re-runs that change only page/block
// numbering.
func Canonicalize(text string) string {
	t := strings.ToLower(text)
	t = pageMarkerRE.ReplaceAllString(t, "")
	t = pageBannerRE.ReplaceAllString(t, "")
	t = nonWordRE.ReplaceAllString(t, " ")
	t = multiSpaceRE.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// CanonicalHash returns the sha256 hex digest of text's canonical form,
// used both as a secondary cache key (catches re-uploads of the same
// study with different PDF metadata/whitespace) and, ultimately, as part
// of the primary cache key.
func CanonicalHash(text string) string {
	sum := sha256.Sum256([]byte(Canonicalize(text)))
	return hex.EncodeToString(sum[:])
}

// ParamsHash summarizes the run parameters that change the compiled
// output for otherwise-identical text (relax mode, deterministic mode),
// so two runs differing only in these flags never share a cache slot.
func ParamsHash(relaxMode, deterministic bool) string {
	sum := sha256.Sum256([]byte(boolTag(relaxMode) + "|" + boolTag(deterministic)))
	return hex.EncodeToString(sum[:])[:12]
}

func boolTag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

const cacheKeyPrefix = "pdfcohort::"

// CacheKey builds the content-addressed cache key for a canonical text
// hash and a params hash, laid out as
// "pdfcohort::<hash>::<paramsHash>".
func CacheKey(canonicalHash, paramsHash string) string {
	return cacheKeyPrefix + canonicalHash + "::" + paramsHash
}

// Cache wraps a kvstore.Store with the pdfcohort key scheme.
type Cache struct {
	Backend kvstore.Store
}

// Lookup returns a previously cached Result for the given canonical hash
// and params hash, if present.
func (c Cache) Lookup(ctx context.Context, canonicalHash, paramsHash string) (Result, bool, error) {
	var out Result
	found, err := c.Backend.Get(ctx, CacheKey(canonicalHash, paramsHash), &out)
	if err != nil || !found {
		return Result{}, false, err
	}
	return out, true, nil
}

// Save records result under the given canonical hash and params hash.
func (c Cache) Save(ctx context.Context, canonicalHash, paramsHash string, result Result) error {
	return c.Backend.Set(ctx, CacheKey(canonicalHash, paramsHash), result)
}
