package taskanalysis

import "regexp"

// domainOrder is the enumeration order used for tie-breaks
var domainOrder = []Domain{
	DomainFrontend,
	DomainBackend,
	DomainDatabase,
	DomainDevOps,
	DomainSecurity,
	DomainTesting,
	DomainDesign,
	DomainArchitecture,
	DomainDocumentation,
	DomainBusiness,
	DomainDataScience,
}

// DomainKeywords is the per-domain vocabulary. Entries containing a space are phrases and
// match as substrings with double weight; everything else matches on word boundaries.
var DomainKeywords = map[Domain][]string{
	DomainFrontend: {
		"react", "vue", "angular", "svelte", "css", "html", "javascript", "typescript", "frontend",
		"ui", "component", "components", "dom", "browser", "tailwind", "nextjs", "next.js", "redux",
		"webpack", "vite", "responsive",
		"user interface", "single page application", "state management",
	},
	DomainBackend: {
		"api", "apis", "backend", "server", "endpoint", "endpoints", "rest", "graphql", "microservice",
		"microservices", "express", "django", "flask", "spring", "node.js", "golang", "grpc",
		"middleware", "handler", "routing", "webhook",
		"rest api", "web server", "business logic", "request handling",
	},
	DomainDatabase: {
		"database", "databases", "sql", "postgres", "postgresql", "mysql", "mongodb", "redis",
		"query", "queries", "schema", "index", "indexes", "migration", "migrations", "orm", "nosql",
		"sqlite", "transaction", "transactions",
		"data model", "foreign key", "query optimization",
	},
	DomainDevOps: {
		"docker", "kubernetes", "k8s", "deploy", "deployment", "pipeline", "terraform", "ansible",
		"helm", "aws", "gcp", "azure", "container", "containers", "infrastructure", "monitoring",
		"nginx", "devops",
		"ci/cd", "github actions", "infrastructure as code", "continuous integration",
	},
	DomainSecurity: {
		"security", "auth", "authentication", "authorization", "jwt", "oauth", "oauth2",
		"encryption", "encrypt", "password", "passwords", "token", "tokens", "vulnerability",
		"xss", "csrf", "ssl", "tls", "permissions", "rbac", "secure",
		"access control", "sql injection", "single sign-on",
	},
	DomainTesting: {
		"test", "tests", "testing", "mock", "mocks", "jest", "pytest", "coverage", "e2e", "tdd",
		"assertion", "assertions", "fixture", "fixtures", "cypress", "selenium",
		"unit test", "unit tests", "test coverage", "end-to-end",
	},
	DomainDesign: {
		"design", "ux", "wireframe", "wireframes", "figma", "mockup", "mockups", "prototype",
		"typography", "layout", "accessibility", "color", "palette",
		"design system", "user experience", "visual design",
	},
	DomainArchitecture: {
		"architecture", "scalability", "scalable", "monolith", "modular", "decoupled", "cqrs", "ddd",
		"layered", "distributed", "patterns",
		"system design", "design pattern", "design patterns", "event sourcing", "clean architecture",
		"event-driven",
	},
	DomainDocumentation: {
		"documentation", "docs", "readme", "guide", "tutorial", "docstring", "docstrings",
		"changelog", "wiki", "documented",
		"api reference", "user guide", "technical writing",
	},
	DomainBusiness: {
		"business", "revenue", "customer", "customers", "market", "pricing", "stakeholder",
		"stakeholders", "roadmap", "kpi", "kpis", "sales", "strategy", "budget", "roi", "startup",
		"go to market", "business model", "product requirements",
	},
	DomainDataScience: {
		"data", "dataset", "datasets", "ml", "pandas", "numpy", "regression", "classification",
		"training", "neural", "tensorflow", "pytorch", "analytics", "statistics", "statistical",
		"clustering", "embedding", "embeddings",
		"machine learning", "deep learning", "data pipeline", "feature engineering",
	},
}

type typePatterns struct {
	taskType TaskType
	patterns []*regexp.Regexp
}

// taskTypeTable is evaluated in order; order also breaks ties
var taskTypeTable = []typePatterns{
	{TaskCoding, compileAll(
		`\bimplement(s|ed|ing|ation)?\b`,
		`\b(write|writing)\s+(a\s+|an\s+|the\s+)?(function|class|method|script|code|module|program)\b`,
		`\b(code|coding)\b`,
		`\brefactor(s|ed|ing)?\b`,
		`\b(build|create|develop)\s+(a\s+|an\s+|the\s+)?(api|endpoint|service|app|application|feature|component|library|cli|integration)\b`,
		`\b(function|endpoint|class|module)s?\b`,
	)},
	{TaskWriting, compileAll(
		`\b(write|draft|compose)\s+(a\s+|an\s+|the\s+)?(blog|article|post|email|essay|copy|story|letter|report)\b`,
		`\b(blog|article|essay|newsletter|copywriting)\b`,
		`\b(proofread|rewrite|reword)\b`,
	)},
	{TaskAnalysis, compileAll(
		`\b(analy[sz]e|analysis|evaluate|evaluation|assess|assessment|compare|comparison)\b`,
		`\b(metrics|trends?|insights?)\b`,
		`\bbenchmark(s|ed|ing)?\b`,
	)},
	{TaskResearch, compileAll(
		`\b(research|investigate|explore|survey|study)\b`,
		`\b(what is|what are|learn about|find out)\b`,
		`\b(state of the art|literature|alternatives)\b`,
	)},
	{TaskDebugging, compileAll(
		`\b(debug|debugging|fix|fixing|bug|bugs|crash|crashes|failing|broken)\b`,
		`\b(errors?|exceptions?|panics?)\b`,
		`\b(stack trace|not working|doesn'?t work|troubleshoot)\b`,
	)},
	{TaskDesign, compileAll(
		`\b(design|designing|redesign)\b`,
		`\b(wireframes?|mockups?|prototype|layout)\b`,
		`\b(architect|architecture)\b`,
	)},
	{TaskPlanning, compileAll(
		`\b(plan|planning|roadmap|timeline|milestones?|schedule)\b`,
		`\b(estimate|prioriti[sz]e|strategy)\b`,
		`\b(migration plan|sprint)\b`,
	)},
}

// Complexity signal vocabularies
var (
	integrationKeywords = []string{
		"distributed", "production", "enterprise", "microservices", "multi-tenant",
		"high availability", "fault tolerant", "fault-tolerant", "load balancing", "kubernetes",
		"integration", "third-party", "real-time",
	}
	expertKeywords = []string{
		"consensus", "sharding", "cap theorem", "raft", "paxos", "byzantine",
		"eventual consistency", "vector clock", "crdt", "lock-free", "zero-downtime",
		"formal verification", "linearizability",
	}
	performanceKeywords = []string{
		"performance", "scale", "scaling", "scalability", "latency", "throughput", "optimize",
		"optimization", "high-traffic",
	}
	pluralKeywords  = []string{"multiple", "various", "several", "many", "numerous"}
	simpleKeywords  = []string{"simple", "basic", "quick"}
	exampleKeywords = []string{"example", "demo", "poc", "proof of concept"}
)

// Entity extraction families applied to the original-case text
var (
	titleCaseRe  = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	hyphenatedRe = regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)+\b`)
	camelCaseRe  = regexp.MustCompile(`\b[a-z]+[A-Z][A-Za-z0-9]*\b|\b[A-Z][a-z]+[A-Z][A-Za-z0-9]*\b`)
	acronymRe    = regexp.MustCompile(`\b[A-Z]{2,}[0-9]*\b`)
	wordRe       = regexp.MustCompile(`[A-Za-z][A-Za-z0-9.+#/-]*`)
)

var technicalCompounds = []string{
	"machine learning", "deep learning", "rest api", "web socket", "websocket connection",
	"access token", "refresh token", "rate limiting", "load balancer", "message queue",
	"service mesh", "event sourcing", "dependency injection", "unit testing", "data pipeline",
	"vector database", "connection pool", "state management", "error handling", "api gateway",
	"continuous integration", "natural language processing",
}

// requestWords are the verbs of a task's phrasing ("please implement", "help build"). They are
// noise for entity n-grams on top of the general stop words.
var requestWords = map[string]bool{
	"please": true, "help": true, "set": true, "implement": true, "create": true, "build": true,
	"write": true, "add": true, "fix": true, "design": true, "develop": true, "improve": true,
	"update": true,
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

