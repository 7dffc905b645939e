package align

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Complexity holds cyclomatic complexity for a file.
type Complexity struct {
	Average float64 `json:"average" yaml:"average"`
	Max     float64 `json:"max" yaml:"max"`
}

// Coverage holds test coverage percentages for a file.
type Coverage struct {
	Line     float64 `json:"line" yaml:"line"`
	Branch   float64 `json:"branch" yaml:"branch"`
	Function float64 `json:"function" yaml:"function"`
}

// FileMetrics is the static-analysis record for one file.
type FileMetrics struct {
	Complexity *Complexity `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	Coverage   *Coverage   `json:"coverage,omitempty" yaml:"coverage,omitempty"`
}

// Analyzer supplies static-analysis metrics for source files. Files it knows
// nothing about are simply absent from the result.
type Analyzer interface {
	Analyze(ctx context.Context, paths []string) (map[string]FileMetrics, error)
}

// StaticAnalyzer serves metrics from an in-memory table.
type StaticAnalyzer map[string]FileMetrics

// Analyze implements Analyzer.
func (a StaticAnalyzer) Analyze(_ context.Context, paths []string) (map[string]FileMetrics, error) {
	out := make(map[string]FileMetrics, len(paths))
	for _, p := range paths {
		if m, ok := a[p]; ok {
			out[p] = m
		}
	}
	return out, nil
}

// Report is the on-disk analysis report format.
type Report struct {
	Files map[string]FileMetrics `json:"files" yaml:"files"`
}

// LoadReport reads a JSON or YAML analysis report (by extension) and returns
// it as an Analyzer.
func LoadReport(fs afero.Fs, path string) (StaticAnalyzer, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read analysis report: %w", err)
	}

	var r Report
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("parse analysis report %s: %w", path, err)
	}
	if r.Files == nil {
		r.Files = map[string]FileMetrics{}
	}
	return StaticAnalyzer(r.Files), nil
}

// FileSetMetrics aggregates metrics over a related file set. Known is false
// when no file in the set had that kind of data.
type FileSetMetrics struct {
	Complexity      float64 `json:"complexity"`
	ComplexityKnown bool    `json:"complexityKnown"`
	LineCoverage    float64 `json:"lineCoverage"`
	CoverageKnown   bool    `json:"coverageKnown"`
}

// Aggregate averages complexity and line coverage over paths.
func Aggregate(paths []string, metrics map[string]FileMetrics) FileSetMetrics {
	var agg FileSetMetrics
	var cx, cov float64
	var ncx, ncov int
	for _, p := range paths {
		m, ok := metrics[p]
		if !ok {
			continue
		}
		if m.Complexity != nil {
			cx += m.Complexity.Average
			ncx++
		}
		if m.Coverage != nil {
			cov += m.Coverage.Line
			ncov++
		}
	}
	if ncx > 0 {
		agg.Complexity = round2(cx / float64(ncx))
		agg.ComplexityKnown = true
	}
	if ncov > 0 {
		agg.LineCoverage = round2(cov / float64(ncov))
		agg.CoverageKnown = true
	}
	return agg
}
