package pdfcohort

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"reactsql-mimic/internal/adapter"
	"reactsql-mimic/internal/apperr"
	"reactsql-mimic/internal/metadata"
)

// Options controls one analysis run: whether relaxation is allowed,
// whether the run must be deterministic, and whether the cache may serve
// a prior result.
type Options struct {
	RelaxMode     bool
	Deterministic bool
	ReuseExisting bool
}

// Result is everything one analysis run produces: the compiled SQL, the
// executed cohort rows, the per-step funnel counts, and whatever warnings
// accumulated along the way.
type Result struct {
	CohortDefinition CohortDefinition
	MappedVariables  []MappedVariable
	CompiledSQL      CompiledSQL
	Columns          []string
	Rows             []map[string]any
	RowCount         int
	StepCounts       []map[string]any
	Warnings         []string
	PatientLevel     bool
}

var resultIdentifierColumns = map[string]bool{"SUBJECT_ID": true, "HADM_ID": true, "STAY_ID": true}

// hasIdentifierColumns reports whether any result column is a patient/
// admission/stay identifier; used to decide whether a result is
// aggregate-only and needs the patient-level rewrite.
func hasIdentifierColumns(columns []string) bool {
	for _, c := range columns {
		if resultIdentifierColumns[strings.ToUpper(c)] {
			return true
		}
	}
	return false
}

// Pipeline bundles everything one analysis run needs: the LLM client,
// the signal vocabulary, the schema catalog for verification, the target
// database, and the content-addressed cache.
type Pipeline struct {
	LLM     llms.Model
	Signals *SignalMap
	Catalog *metadata.Catalog
	DB      adapter.DBAdapter
	Cache   Cache
}

// Analyze runs the full PDF cohort pipeline: extract text/assets
// concurrently, check the content-addressed cache, extract cohort
// conditions, generate and compile the cohort intent, verify the SQL
// against the schema catalog, execute it, and — on a zero-row or
// aggregate-only result — relax or rewrite once before giving up.
func (p *Pipeline) Analyze(ctx context.Context, fileContent []byte, text TextExtractor, assets AssetExtractor, opts Options) (Result, error) {
	extraction, err := Extract(ctx, text, assets, fileContent)
	if err != nil {
		return Result{}, err
	}

	canonicalHash := CanonicalHash(extraction.FullText)
	paramsHash := ParamsHash(opts.RelaxMode, opts.Deterministic)

	if opts.ReuseExisting {
		if cached, ok, err := p.Cache.Lookup(ctx, canonicalHash, paramsHash); err == nil && ok {
			return cached, nil
		}
	}

	assetsSummary := SummarizeAssets(extraction.Assets)

	def, _, err := ExtractConditions(ctx, p.LLM, extraction.FullText, assetsSummary)
	if err != nil {
		return Result{}, err
	}
	mapped := MapVariables(p.Signals, def.Variables)

	intent, _, err := GenerateIntent(ctx, p.LLM, def, p.Signals)
	if err != nil {
		return Result{}, err
	}

	result, err := p.compileVerifyExecute(ctx, intent)
	if err != nil {
		return Result{}, err
	}
	result.CohortDefinition = def
	result.MappedVariables = mapped

	if result.RowCount == 0 {
		result = p.relaxAndRetry(ctx, intent, result)
	} else if !hasIdentifierColumns(result.Columns) {
		result = p.rewritePatientLevel(ctx, result)
	}

	if opts.ReuseExisting {
		_ = p.Cache.Save(ctx, canonicalHash, paramsHash, result)
	}
	return result, nil
}

func (p *Pipeline) compileVerifyExecute(ctx context.Context, intent CohortIntent) (Result, error) {
	compiled := CompileOracleSQL(p.Signals, intent)
	result := Result{CompiledSQL: compiled, Warnings: append([]string{}, compiled.Warnings...)}

	if ok, msg := VerifySQL(p.Catalog, compiled.CohortSQL); !ok {
		result.Warnings = append(result.Warnings, msg)
	}

	qr, err := p.DB.ExecuteQuery(ctx, compiled.CohortSQL)
	if err != nil {
		return result, apperr.Wrap(apperr.KindDriverError, "cohort SQL execution failed", err)
	}
	result.Columns = qr.Columns
	result.Rows = qr.Rows
	result.RowCount = qr.RowCount
	result.PatientLevel = hasIdentifierColumns(qr.Columns)

	if debugRes, err := p.DB.ExecuteQuery(ctx, compiled.DebugCountSQL); err == nil {
		result.StepCounts = debugRes.Rows
	}
	return result, nil
}

// relaxAndRetry drops non-mandatory inclusion steps and recompiles once;
// it is the deterministic half of the auto-relaxation pass (the LLM-driven
// RelaxSQL rewrite is attempted only if this still comes back empty).
func (p *Pipeline) relaxAndRetry(ctx context.Context, intent CohortIntent, prior Result) Result {
	relaxed := relaxIntent(intent)
	if len(relaxed.Steps) == len(intent.Steps) {
		prior.Warnings = append(prior.Warnings, "zero rows returned; no non-mandatory steps to relax")
		return prior
	}
	retried, err := p.compileVerifyExecute(ctx, relaxed)
	if err != nil {
		prior.Warnings = append(prior.Warnings, "relaxation retry failed: "+err.Error())
		return prior
	}
	retried.CohortDefinition = prior.CohortDefinition
	retried.MappedVariables = prior.MappedVariables
	retried.Warnings = append(retried.Warnings, "zero rows on strict cohort; relaxed non-mandatory steps")

	if retried.RowCount == 0 {
		retried = p.relaxViaLLM(ctx, retried)
	}
	return retried
}

// relaxViaLLM asks the model to loosen the compiled SQL directly when
// dropping non-mandatory steps still returns zero rows; a last resort
// after the deterministic relaxation pass.
func (p *Pipeline) relaxViaLLM(ctx context.Context, prior Result) Result {
	rewrite, _, err := RelaxSQL(ctx, p.LLM, prior.CompiledSQL.CohortSQL)
	if err != nil || rewrite.FinalSQL == "" {
		prior.Warnings = append(prior.Warnings, "zero rows after relaxation; LLM relax rewrite unavailable")
		return prior
	}
	qr, err := p.DB.ExecuteQuery(ctx, rewrite.FinalSQL)
	if err != nil || qr.RowCount == 0 {
		prior.Warnings = append(prior.Warnings, "zero rows after LLM relax rewrite")
		return prior
	}
	prior.CompiledSQL.CohortSQL = rewrite.FinalSQL
	prior.Columns = qr.Columns
	prior.Rows = qr.Rows
	prior.RowCount = qr.RowCount
	prior.PatientLevel = hasIdentifierColumns(qr.Columns)
	prior.Warnings = append(prior.Warnings, "applied LLM relax rewrite after deterministic relaxation still returned zero rows")
	return prior
}

// rewritePatientLevel asks the model to turn an aggregate-only final
// SELECT into a patient-level one, re-executes it, and keeps the rewrite
// only if it still succeeds.
func (p *Pipeline) rewritePatientLevel(ctx context.Context, prior Result) Result {
	rewrite, _, err := RewriteToPatientLevel(ctx, p.LLM, prior.CompiledSQL.CohortSQL)
	if err != nil || rewrite.FinalSQL == "" {
		prior.Warnings = append(prior.Warnings, "result was aggregate-only; patient-level rewrite unavailable")
		return prior
	}
	qr, err := p.DB.ExecuteQuery(ctx, rewrite.FinalSQL)
	if err != nil {
		prior.Warnings = append(prior.Warnings, "patient-level rewrite failed to execute; keeping aggregate result")
		return prior
	}
	prior.CompiledSQL.CohortSQL = rewrite.FinalSQL
	prior.Columns = qr.Columns
	prior.Rows = qr.Rows
	prior.RowCount = qr.RowCount
	prior.PatientLevel = hasIdentifierColumns(qr.Columns)
	prior.Warnings = append(prior.Warnings, "rewrote aggregate-only result to patient-level rows")
	return prior
}
