package report

import (
	"archratchet/internal/core/app"
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/engine/analysis"
	"archratchet/internal/engine/priority"
	"archratchet/internal/engine/ratchet"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Output formats for machine-readable diagnostics.
const (
	FormatJSON = "json"
	FormatTSV  = "tsv"
)

func ValidFormat(f string) bool {
	return f == FormatJSON || f == FormatTSV
}

// RenderRunTSV emits one line per finding. Ratchet deltas carry the metric
// and both counts; other findings leave those columns empty.
func RenderRunTSV(res *app.RunResult) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Severity\tType\tEntity\tMetric\tOld\tNew\tDetail\tRemediation\n")
	for _, d := range res.Check.Regressions {
		buf.WriteString(fmt.Sprintf("error\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			app.KindRegression, d.File, d.Metric, d.Old, d.New, d.String(),
			fmt.Sprintf("bring %s back to %d or below", d.Metric, d.Old)))
	}
	for _, f := range res.Verdict.Failures {
		if f.Kind == app.KindRegression {
			continue
		}
		writeFinding(&buf, "error", f)
	}
	for _, f := range res.Verdict.Warnings {
		writeFinding(&buf, "warning", f)
	}
	for _, d := range res.Check.Improvements {
		buf.WriteString(fmt.Sprintf("info\timprovement\t%s\t%s\t%d\t%d\t%s\t%s\n",
			d.File, d.Metric, d.Old, d.New, d.String(), "run `archratchet update` to lock it in"))
	}

	return []byte(buf.String()), nil
}

func writeFinding(buf *strings.Builder, severity string, f app.Finding) {
	buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t\t\t\t%s\t%s\n",
		severity, f.Kind, f.Entity, tsvSafe(f.Message), tsvSafe(f.Remediation)))
}

// runDocument is the stable JSON shape of a run. The full analysis is
// reduced to its report rows.
type runDocument struct {
	Operation string                `json:"operation"`
	CommitRef string                `json:"commitRef,omitempty"`
	Passed    bool                  `json:"passed"`
	Written   bool                  `json:"written"`
	Verdict   app.Verdict           `json:"verdict"`
	Check     ratchet.CheckResult   `json:"check"`
	Report    []app.ReportRow       `json:"report,omitempty"`
	Cycles    *analysis.CycleReport `json:"cycles,omitempty"`
}

func RenderRunJSON(res *app.RunResult) ([]byte, error) {
	doc := runDocument{
		Operation: res.Operation,
		CommitRef: res.CommitRef,
		Passed:    res.Verdict.Passed,
		Written:   res.Written,
		Verdict:   res.Verdict,
		Check:     res.Check,
	}
	if res.Analysis != nil {
		doc.Report = res.Analysis.Report
		doc.Cycles = res.Analysis.Cycles
	}
	return json.MarshalIndent(doc, "", "  ")
}

func RenderReportTSV(rows []app.ReportRow) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Package\tFanIn\tFanOut\tInstability\tDepth\tUnitClass\tClusters\tStatus\tDetail\n")
	for _, r := range rows {
		buf.WriteString(fmt.Sprintf("%s\t%d\t%d\t%.3f\t%d\t%s\t%d\t%s\t%s\n",
			r.Package, r.FanIn, r.FanOut, r.Instability, r.Depth, r.UnitClass, r.ClusterCount, r.Status, tsvSafe(r.Detail)))
	}

	return []byte(buf.String()), nil
}

func RenderReportJSON(rows []app.ReportRow) ([]byte, error) {
	return json.MarshalIndent(rows, "", "  ")
}

func RenderPriorityTSV(entries []priority.Entry) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Rank\tFile\tChurn\tComplexity\tScore\n")
	for i, e := range entries {
		buf.WriteString(fmt.Sprintf("%d\t%s\t%d\t%d\t%.4f\n", i+1, e.FilePath, e.Churn, e.Complexity, e.Score))
	}

	return []byte(buf.String()), nil
}

func RenderPriorityJSON(entries []priority.Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}

func tsvSafe(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}

// errorEntityKeys lists the context keys naming the offending entity, most
// specific first.
var errorEntityKeys = []string{
	coreerrors.CtxModule,
	coreerrors.CtxFrom,
	coreerrors.CtxPackage,
	coreerrors.CtxPath,
}

// ErrorDiagnostic is the machine-readable form of an error that aborted a run.
type ErrorDiagnostic struct {
	Code        coreerrors.ErrorCode   `json:"code"`
	Entity      string                 `json:"entity,omitempty"`
	Message     string                 `json:"message"`
	Remediation string                 `json:"remediation,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

func NewErrorDiagnostic(err error) ErrorDiagnostic {
	var de *coreerrors.DomainError
	if !errors.As(err, &de) {
		return ErrorDiagnostic{Code: coreerrors.CodeInternal, Message: err.Error()}
	}
	diag := ErrorDiagnostic{
		Code:        de.Code,
		Message:     de.Message,
		Remediation: de.Remediation,
		Context:     de.Context,
	}
	if de.Err != nil {
		diag.Message = fmt.Sprintf("%s: %v", de.Message, de.Err)
	}
	for _, key := range errorEntityKeys {
		if v, ok := de.Context[key]; ok {
			diag.Entity = fmt.Sprint(v)
			break
		}
	}
	return diag
}

// RenderErrorTSV writes the run header followed by a single fatal row.
func RenderErrorTSV(err error) ([]byte, error) {
	d := NewErrorDiagnostic(err)
	var buf strings.Builder
	buf.WriteString("Severity\tType\tEntity\tMetric\tOld\tNew\tDetail\tRemediation\n")
	buf.WriteString(fmt.Sprintf("fatal\t%s\t%s\t\t\t\t%s\t%s\n",
		d.Code, tsvSafe(d.Entity), tsvSafe(d.Message), tsvSafe(d.Remediation)))
	return []byte(buf.String()), nil
}

func RenderErrorJSON(err error) ([]byte, error) {
	doc := struct {
		Passed bool            `json:"passed"`
		Error  ErrorDiagnostic `json:"error"`
	}{Error: NewErrorDiagnostic(err)}
	return json.MarshalIndent(doc, "", "  ")
}
