package metadata

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultCredibilityScore applies to domains matching no rule
const DefaultCredibilityScore = 0.60

// TLDRule scores every domain ending in Suffix
type TLDRule struct {
	Suffix      string  `yaml:"suffix"`
	Score       float64 `yaml:"score"`
	Description string  `yaml:"description"`
}

// DomainGroup scores a named set of domains and their subdomains
type DomainGroup struct {
	Category    string   `yaml:"category"`
	Score       float64  `yaml:"score"`
	Description string   `yaml:"description"`
	Domains     []string `yaml:"domains"`
}

// CredibilityConfig holds domain credibility scoring rules used as the authority score of
// web sources
type CredibilityConfig struct {
	CredibilityRules struct {
		TLDPatterns  []TLDRule     `yaml:"tld_patterns"`
		DomainGroups []DomainGroup `yaml:"domain_groups"`
		DefaultScore float64       `yaml:"default_score"`
	} `yaml:"credibility_rules"`
}

var (
	credibilityConfig     *CredibilityConfig
	credibilityConfigOnce sync.Once
)

// GetCredibilityConfigPath returns the rules file path, checking the env var first
func GetCredibilityConfigPath() string {
	if envPath := os.Getenv("TAILOR_CREDIBILITY_CONFIG"); envPath != "" {
		return envPath
	}
	return "config/credibility.yaml"
}

// LoadCredibilityConfig loads the credibility rules once per process, falling back to
// built-in defaults when the file is missing or invalid
func LoadCredibilityConfig() *CredibilityConfig {
	credibilityConfigOnce.Do(func() {
		configPath := GetCredibilityConfigPath()
		logger := zap.L().With(zap.String("path", configPath))

		data, err := os.ReadFile(configPath)
		if err != nil {
			logger.Warn("Failed to load credibility config, using defaults", zap.Error(err))
			credibilityConfig = defaultCredibilityConfig()
			return
		}

		var config CredibilityConfig
		if err := yaml.Unmarshal(data, &config); err != nil {
			logger.Warn("Failed to parse credibility config, using defaults", zap.Error(err))
			credibilityConfig = defaultCredibilityConfig()
			return
		}

		credibilityConfig = &config
		logger.Info("Loaded credibility config",
			zap.Int("tld_patterns", len(config.CredibilityRules.TLDPatterns)),
			zap.Int("domain_groups", len(config.CredibilityRules.DomainGroups)),
		)
	})

	return credibilityConfig
}

// ResetCredibilityConfigForTest resets the singleton. Test code only.
func ResetCredibilityConfigForTest() {
	credibilityConfigOnce = sync.Once{}
	credibilityConfig = nil
}

func defaultCredibilityConfig() *CredibilityConfig {
	cfg := &CredibilityConfig{}
	cfg.CredibilityRules.TLDPatterns = []TLDRule{
		{Suffix: ".edu", Score: 0.85, Description: "Educational"},
		{Suffix: ".gov", Score: 0.80, Description: "Government"},
	}
	cfg.CredibilityRules.DefaultScore = DefaultCredibilityScore
	return cfg
}

// ScoreCredibility scores a domain by the configured rules. TLD patterns are checked
// before domain groups.
func ScoreCredibility(domain string) float64 {
	config := LoadCredibilityConfig()
	domain = strings.ToLower(strings.TrimSpace(domain))

	for _, rule := range config.CredibilityRules.TLDPatterns {
		if strings.HasSuffix(domain, rule.Suffix) {
			return rule.Score
		}
	}

	for _, group := range config.CredibilityRules.DomainGroups {
		for _, known := range group.Domains {
			if domainMatches(domain, known) {
				return group.Score
			}
		}
	}

	if config.CredibilityRules.DefaultScore > 0 {
		return config.CredibilityRules.DefaultScore
	}
	return DefaultCredibilityScore
}

// AuthorityForURL is the credibility of the URL's domain, or the default score when the URL
// cannot be parsed
func AuthorityForURL(rawURL string) float64 {
	domain, err := ExtractDomain(rawURL)
	if err != nil || domain == "" {
		return DefaultCredibilityScore
	}
	return ScoreCredibility(domain)
}

// domainMatches is an exact match or a subdomain of pattern (docs.github.com matches github.com)
func domainMatches(host, pattern string) bool {
	pattern = strings.ToLower(pattern)
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
