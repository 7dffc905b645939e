package checks

import (
	"fmt"
	"strings"
)

// GenericParser is the fallback parser that captures the exit code and the
// tail of the output.
type GenericParser struct{}

// maxOutputLen caps how much stdout/stderr the generic parser retains in findings.
const maxOutputLen = 4000

func (p *GenericParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	if exitCode == 0 {
		return ParseResult{Passed: true, Summary: "passed (exit code 0)", Findings: ""}
	}

	combined := strings.TrimSpace(strings.Join([]string{stdout, stderr}, "\n"))
	summary := fmt.Sprintf("failed (exit code %d)", exitCode)
	if last := lastLine(combined); last != "" {
		summary += ": " + last
	}
	// Keep the tail; error summaries are usually at the end.
	if len(combined) > maxOutputLen {
		combined = "…(truncated)\n" + combined[len(combined)-maxOutputLen:]
	}
	return ParseResult{Passed: false, Summary: summary, Findings: combined}
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
