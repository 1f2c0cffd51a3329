package taskanalysis

import "strings"

// TaskType is the coarse kind of work a task asks for
type TaskType string

const (
	TaskCoding    TaskType = "CODING"
	TaskWriting   TaskType = "WRITING"
	TaskAnalysis  TaskType = "ANALYSIS"
	TaskResearch  TaskType = "RESEARCH"
	TaskDebugging TaskType = "DEBUGGING"
	TaskDesign    TaskType = "DESIGN"
	TaskPlanning  TaskType = "PLANNING"
	TaskOther     TaskType = "OTHER"
)

// Complexity tier
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
	ComplexityExpert Complexity = "EXPERT"
)

// Domain is a knowledge area a task touches
type Domain string

const (
	DomainFrontend      Domain = "FRONTEND"
	DomainBackend       Domain = "BACKEND"
	DomainDatabase      Domain = "DATABASE"
	DomainDevOps        Domain = "DEVOPS"
	DomainSecurity      Domain = "SECURITY"
	DomainTesting       Domain = "TESTING"
	DomainDesign        Domain = "DESIGN"
	DomainArchitecture  Domain = "ARCHITECTURE"
	DomainDocumentation Domain = "DOCUMENTATION"
	DomainBusiness      Domain = "BUSINESS"
	DomainDataScience   Domain = "DATA_SCIENCE"
	DomainGeneral       Domain = "GENERAL"
)

// Label returns the lower-case, space separated form used in search queries
func (d Domain) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(d), "_", " "))
}

// Analysis is the read-only result of analysing one task description
type Analysis struct {
	TaskType               TaskType   `json:"task_type"`
	Complexity             Complexity `json:"complexity"`
	Domains                []Domain   `json:"domains"`
	KeyEntities            []string   `json:"key_entities"`
	SuggestedSearchQueries []string   `json:"suggested_search_queries"`
	EstimatedTokenBudget   int        `json:"estimated_token_budget"`
	Confidence             float64    `json:"confidence"`
}

// HasDomain reports whether d was detected
func (a Analysis) HasDomain(d Domain) bool {
	for _, x := range a.Domains {
		if x == d {
			return true
		}
	}
	return false
}

// TokenBudget maps a complexity tier to the suggested context size
func TokenBudget(c Complexity) int {
	switch c {
	case ComplexityMedium:
		return 4000
	case ComplexityHigh:
		return 8000
	case ComplexityExpert:
		return 16000
	default:
		return 2000
	}
}
