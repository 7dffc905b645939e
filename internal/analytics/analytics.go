// Package analytics answers history questions over recorded planning runs:
// how often the gate says GO, how full plans are, which readiness checks
// fail most and how long each stage takes.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// RunStats summarizes recorded runs.
type RunStats struct {
	Runs          int     `json:"runs"`
	Go            int     `json:"go"`
	NoGo          int     `json:"no_go"`
	GoRate        float64 `json:"go_rate_pct"`
	AvgItems      float64 `json:"avg_items"`
	AvgPlanned    float64 `json:"avg_planned_points"`
	AvgTarget     float64 `json:"avg_target_points"`
	Utilization   float64 `json:"utilization_pct"`
	AvgWarnings   float64 `json:"avg_warnings"`
	ReadinessP50  float64 `json:"readiness_p50"`
	ReadinessP95  float64 `json:"readiness_p95"`
	ReadinessMean float64 `json:"readiness_mean"`
}

// QueryRunStats aggregates planning_runs. Utilization is total planned
// points over total target points.
func QueryRunStats(database DB, since string) (RunStats, error) {
	query := `SELECT items, planned_points, target, readiness_score, decision, warnings FROM planning_runs`
	args := []interface{}{}
	if since != "" {
		query += ` WHERE timestamp >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return RunStats{}, fmt.Errorf("query run stats: %w", err)
	}
	defer rows.Close()

	var stats RunStats
	var items, planned, warnings int
	var target float64
	var scores []float64
	for rows.Next() {
		var it, pp, w int
		var tg, score float64
		var decision string
		if err := rows.Scan(&it, &pp, &tg, &score, &decision, &w); err != nil {
			return RunStats{}, fmt.Errorf("scan run stats: %w", err)
		}
		stats.Runs++
		if decision == "GO" {
			stats.Go++
		} else {
			stats.NoGo++
		}
		items += it
		planned += pp
		warnings += w
		target += tg
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return RunStats{}, err
	}
	if stats.Runs == 0 {
		return stats, nil
	}

	n := float64(stats.Runs)
	stats.GoRate = pct(stats.Go, stats.Runs)
	stats.AvgItems = round1(float64(items) / n)
	stats.AvgPlanned = round1(float64(planned) / n)
	stats.AvgTarget = round1(target / n)
	stats.AvgWarnings = round1(float64(warnings) / n)
	if target > 0 {
		stats.Utilization = round1(float64(planned) / target * 100)
	}
	sort.Float64s(scores)
	stats.ReadinessMean = avg(scores)
	stats.ReadinessP50 = percentile(scores, 50)
	stats.ReadinessP95 = percentile(scores, 95)
	return stats, nil
}

// StageDuration holds duration stats for a stage.
type StageDuration struct {
	Stage  string  `json:"stage"`
	Count  int     `json:"count"`
	Failed int     `json:"failed"`
	Avg    float64 `json:"avg_ms"`
	P50    float64 `json:"p50_ms"`
	P95    float64 `json:"p95_ms"`
}

// QueryStageDurations returns average and percentile durations per stage
// from finished events. Failed events are counted but not timed.
func QueryStageDurations(database DB, since string) ([]StageDuration, error) {
	query := `
		SELECT stage, event, COALESCE(duration_ms, 0)
		FROM stage_events
		WHERE event IN ('finished', 'failed')`

	args := []interface{}{}
	if since != "" {
		query += ` AND timestamp >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage durations: %w", err)
	}
	defer rows.Close()

	durations := make(map[string][]float64)
	failed := make(map[string]int)
	for rows.Next() {
		var stage, event string
		var ms int64
		if err := rows.Scan(&stage, &event, &ms); err != nil {
			return nil, fmt.Errorf("scan stage duration: %w", err)
		}
		if event == "failed" {
			failed[stage]++
			if _, ok := durations[stage]; !ok {
				durations[stage] = nil
			}
			continue
		}
		durations[stage] = append(durations[stage], float64(ms))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []StageDuration
	for stage, ds := range durations {
		sort.Float64s(ds)
		results = append(results, StageDuration{
			Stage:  stage,
			Count:  len(ds),
			Failed: failed[stage],
			Avg:    avg(ds),
			P50:    percentile(ds, 50),
			P95:    percentile(ds, 95),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Stage < results[j].Stage
	})
	return results, nil
}

// GroupPassRate holds readiness pass rates for one check group.
type GroupPassRate struct {
	Group    string  `json:"group"`
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_rate_pct"`
}

// QueryGroupPassRates returns the share of passing checks per group.
func QueryGroupPassRates(database DB, since string) ([]GroupPassRate, error) {
	query := `
		SELECT check_group,
			COUNT(*) as total,
			SUM(CASE WHEN passed = 1 THEN 1 ELSE 0 END) as passed
		FROM check_runs`

	args := []interface{}{}
	if since != "" {
		query += ` WHERE timestamp >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY check_group ORDER BY check_group`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query group pass rates: %w", err)
	}
	defer rows.Close()

	var results []GroupPassRate
	for rows.Next() {
		var r GroupPassRate
		if err := rows.Scan(&r.Group, &r.Total, &r.Passed); err != nil {
			return nil, fmt.Errorf("scan group pass rate: %w", err)
		}
		r.PassRate = pct(r.Passed, r.Total)
		results = append(results, r)
	}
	return results, rows.Err()
}

// CheckFailure holds failure stats for a specific check.
type CheckFailure struct {
	Group        string  `json:"group"`
	Check        string  `json:"check"`
	Total        int     `json:"total"`
	Failed       int     `json:"failed"`
	FailRate     float64 `json:"fail_rate_pct"`
	CommonDetail string  `json:"common_detail"`
}

// QueryCheckFailures returns the checks that fail most, worst first, with
// their most frequent failure detail. Checks that never failed are left out.
func QueryCheckFailures(database DB, since string, limit int) ([]CheckFailure, error) {
	query := `
		SELECT check_group, check_name,
			COUNT(*) as total,
			SUM(CASE WHEN passed = 0 THEN 1 ELSE 0 END) as failed
		FROM check_runs`

	args := []interface{}{}
	if since != "" {
		query += ` WHERE timestamp >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY check_group, check_name HAVING failed > 0 ORDER BY failed DESC, check_group, check_name`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query check failures: %w", err)
	}
	defer rows.Close()

	var results []CheckFailure
	for rows.Next() {
		var r CheckFailure
		if err := rows.Scan(&r.Group, &r.Check, &r.Total, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan check failure: %w", err)
		}
		r.FailRate = pct(r.Failed, r.Total)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		detailQuery := `
			SELECT detail, COUNT(*) as cnt
			FROM check_runs
			WHERE check_group = ? AND check_name = ? AND passed = 0 AND detail != ''`
		dArgs := []interface{}{results[i].Group, results[i].Check}
		if since != "" {
			detailQuery += ` AND timestamp >= ?`
			dArgs = append(dArgs, since)
		}
		detailQuery += ` GROUP BY detail ORDER BY cnt DESC, detail LIMIT 1`

		var detail string
		var cnt int
		err := database.Conn().QueryRow(detailQuery, dArgs...).Scan(&detail, &cnt)
		if err == nil {
			results[i].CommonDetail = detail
		} else if err != sql.ErrNoRows {
			return nil, fmt.Errorf("query failure detail for %s: %w", results[i].Check, err)
		}
	}
	return results, nil
}

// DecisionTrend holds gate outcomes for one week.
type DecisionTrend struct {
	Period     string  `json:"period"`
	Runs       int     `json:"runs"`
	Go         int     `json:"go"`
	NoGo       int     `json:"no_go"`
	AvgScore   float64 `json:"avg_readiness"`
	AvgPlanned float64 `json:"avg_planned_points"`
}

// QueryDecisionTrend returns gate outcomes grouped by week, newest first.
func QueryDecisionTrend(database DB, since string) ([]DecisionTrend, error) {
	query := `
		SELECT
			strftime('%Y-W%W', timestamp) as period,
			COUNT(*) as runs,
			SUM(CASE WHEN decision = 'GO' THEN 1 ELSE 0 END) as go_runs,
			SUM(CASE WHEN decision = 'NO-GO' THEN 1 ELSE 0 END) as no_go_runs,
			AVG(readiness_score) as avg_score,
			AVG(planned_points) as avg_planned
		FROM planning_runs`

	args := []interface{}{}
	if since != "" {
		query += ` WHERE timestamp >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY period ORDER BY period DESC LIMIT 10`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decision trend: %w", err)
	}
	defer rows.Close()

	var results []DecisionTrend
	for rows.Next() {
		var dt DecisionTrend
		if err := rows.Scan(&dt.Period, &dt.Runs, &dt.Go, &dt.NoGo, &dt.AvgScore, &dt.AvgPlanned); err != nil {
			return nil, fmt.Errorf("scan decision trend: %w", err)
		}
		dt.AvgScore = round1(dt.AvgScore)
		dt.AvgPlanned = round1(dt.AvgPlanned)
		results = append(results, dt)
	}
	return results, rows.Err()
}

// RunEvent is one line of a run's timeline.
type RunEvent struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Event     string `json:"event"`
	Detail    string `json:"detail,omitempty"`
}

// QueryRunDetail returns a run's stage events in execution order followed
// by its readiness checks.
func QueryRunDetail(database DB, runID string) ([]RunEvent, error) {
	var results []RunEvent

	seRows, err := database.Conn().Query(
		`SELECT timestamp, stage, event, COALESCE(duration_ms, 0), warnings, COALESCE(detail, '')
		 FROM stage_events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage events: %w", err)
	}
	defer seRows.Close()

	for seRows.Next() {
		var ts, stage, event, detail string
		var ms int64
		var warnings int
		if err := seRows.Scan(&ts, &stage, &event, &ms, &warnings, &detail); err != nil {
			return nil, fmt.Errorf("scan stage event: %w", err)
		}
		e := RunEvent{Timestamp: ts, Type: "stage", Name: stage, Event: event}
		switch event {
		case "finished":
			e.Detail = fmt.Sprintf("%dms, %d warnings", ms, warnings)
		case "failed":
			e.Detail = detail
		}
		results = append(results, e)
	}
	if err := seRows.Err(); err != nil {
		return nil, err
	}

	crRows, err := database.Conn().Query(
		`SELECT timestamp, check_group, check_name, passed, COALESCE(detail, ''), COALESCE(source, '')
		 FROM check_runs WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query check runs: %w", err)
	}
	defer crRows.Close()

	for crRows.Next() {
		var ts, group, name, detail, source string
		var passed bool
		if err := crRows.Scan(&ts, &group, &name, &passed, &detail, &source); err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		status := "PASS"
		if !passed {
			status = "FAIL"
		}
		d := group
		if source != "" {
			d += " via " + source
		}
		if detail != "" {
			d += ": " + detail
		}
		results = append(results, RunEvent{Timestamp: ts, Type: "check", Name: name, Event: status, Detail: d})
	}
	if err := crRows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return round1(sum / float64(len(values)))
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return round1(sorted[lower])
	}
	weight := rank - float64(lower)
	return round1(sorted[lower]*(1-weight) + sorted[upper]*weight)
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
