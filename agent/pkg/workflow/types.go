package workflow

import (
	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/visualization"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
)

// ConversationTurn is a prior question and the intent it resolved to.
type ConversationTurn struct {
	Question string            `json:"question"`
	Intent   governance.Intent `json:"intent"`
}

// ResultSet holds normalized query output. Columns follows the select
// order: metric alias first, then dimension aliases.
type ResultSet struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Preview returns at most n leading rows.
func (rs ResultSet) Preview(n int) []map[string]any {
	if len(rs.Rows) <= n {
		return rs.Rows
	}
	return rs.Rows[:n]
}

// Result is what a caller gets back for a question.
type Result struct {
	Answer        string              `json:"answer"`
	Visualization *visualization.Spec `json:"visualization,omitempty"`
	Columns       []string            `json:"columns,omitempty"`
	Data          []map[string]any    `json:"data,omitempty"`
	SQL           string              `json:"sql,omitempty"`
	Confidence    float64             `json:"confidence"`
	Error         string              `json:"error,omitempty"`
	Intent        *governance.Intent  `json:"intent,omitempty"`
}

const (
	confidenceBase      = 0.6
	confidenceHasData   = 0.2
	confidenceChart     = 0.1
	confidenceSmall     = 0.1
	confidenceCap       = 0.95
	smallResultMaxRows  = 10
	confidenceRejected  = 0.2
	confidenceExecError = 0.1
)

// Confidence scores an answered question from the shape of its result.
func Confidence(rows int, viz visualization.Spec) float64 {
	c := confidenceBase
	if rows > 0 {
		c += confidenceHasData
	}
	if viz.Type != visualization.TypeTable && viz.Type != visualization.TypeEmpty {
		c += confidenceChart
	}
	if rows <= smallResultMaxRows {
		c += confidenceSmall
	}
	return min(c, confidenceCap)
}
