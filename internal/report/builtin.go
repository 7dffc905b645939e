package report

// builtinTemplates maps template filename to content.
var builtinTemplates = map[string]string{
	"planning.md": planningTemplate,
	"worklog.md":  worklogTemplate,
	"kickoff.md":  kickoffTemplate,
}

const planningTemplate = `# Cycle Planning: {{config}}

Run {{run_id}} as of {{as_of}}. Readiness: **{{readiness_decision}}** ({{readiness_score}}% against a {{readiness_threshold}}% threshold).

## Capacity
{{capacity_table}}

## Selected Issues

### Must Have (committed)
{{#if must_items}}
{{must_items}}
{{else}}
_None._
{{/if}}

### Should Have (likely)
{{#if should_items}}
{{should_items}}
{{else}}
_None._
{{/if}}

### Could Have (stretch)
{{#if could_items}}
{{could_items}}
{{else}}
_None._
{{/if}}

## Work Balance
{{balance_table}}
{{#if swaps}}

Rebalancing swaps:
{{swaps}}
{{/if}}

## Current Cycle
- Health: {{cycle_health}} ({{cycle_progress}} done, {{cycle_expected}} expected)
- Velocity: {{velocity}} points per cycle, {{velocity_trend}}, {{velocity_confidence}} confidence
- Dependency risk: {{dependency_risk}}
- Backlog readiness: {{backlog_readiness}}
{{#if at_risk}}

Items at risk in the current cycle:
{{at_risk}}
{{/if}}

## Risks and Mitigations
{{#if risks}}
{{risks}}
{{else}}
No readiness check failed.
{{/if}}
{{#if advisories}}

Advisories:
{{advisories}}
{{/if}}
{{#if excluded}}

## Not Considered
{{excluded}}
{{/if}}
{{#if warnings}}

## Warnings
{{warnings}}
{{/if}}
`

const worklogTemplate = `# Work Queue: {{config}}

Run {{run_id}}, {{item_count}} items, {{planned_points}} points.

## Queues
{{queues}}

## Assignments
{{assignment_table}}

## Test Requirements
{{test_requirements}}

## Daily Plan
| Day | Planned | Completed | Blockers | Notes |
|-----|---------|-----------|----------|-------|
{{daily_rows}}

## Decision Log
_Record technical decisions here during the cycle._
`

const kickoffTemplate = `# Cycle Kickoff: {{config}}

## Key Numbers
- Planned: **{{planned_points}}** of {{target}} target points across {{item_count}} items
- Capacity: {{point_capacity}} points ({{capacity_source}})
- Readiness: **{{readiness_decision}}** at {{readiness_score}}%

## Goals
1. Complete every Must Have item
{{must_items}}
2. Keep the mix near {{composition_targets}}
3. Meet the coverage targets set for each item

{{#if risks}}
## Open Risks
{{risks}}

{{/if}}
## Work Starts With
{{#if immediate}}
{{immediate}}
{{else}}
{{first_items}}
{{/if}}
`
