package checks

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
)

// GoTestParser parses `go test -json` event streams.
type GoTestParser struct{}

type goTestEvent struct {
	Action  string `json:"Action"`
	Package string `json:"Package"`
	Test    string `json:"Test"`
}

type goTestFailure struct {
	Package string `json:"package"`
	Test    string `json:"test,omitempty"`
}

type goTestResult struct {
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Skipped  int             `json:"skipped"`
	Failures []goTestFailure `json:"failures"`
}

func (p *GoTestParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	res := goTestResult{Failures: []goTestFailure{}}
	events := 0

	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var ev goTestEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events++
		switch ev.Action {
		case "pass":
			if ev.Test != "" {
				res.Passed++
			}
		case "skip":
			if ev.Test != "" {
				res.Skipped++
			}
		case "fail":
			if ev.Test != "" {
				res.Failed++
			}
			res.Failures = append(res.Failures, goTestFailure{Package: ev.Package, Test: ev.Test})
		}
	}

	if events == 0 {
		return ParseResult{
			Passed:   exitCode == 0,
			Summary:  fmt.Sprintf("exit code %d (could not parse go test JSON)", exitCode),
			Findings: res,
		}
	}

	passed := exitCode == 0 && len(res.Failures) == 0
	summary := fmt.Sprintf("%d passed, %d failed, %d skipped", res.Passed, res.Failed, res.Skipped)
	if passed {
		summary = "passed: " + summary
	}
	return ParseResult{Passed: passed, Summary: summary, Findings: res}
}
