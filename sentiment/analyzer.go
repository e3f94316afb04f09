package sentiment

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Analyzer is the scoring capability the worker depends on. The
// rule-based engine is the sole implementation today; a future
// model-based analyzer would satisfy the same interface.
type Analyzer interface {
	Analyze(text string) float64
}

const (
	defaultFuzzyThreshold = 0.85
	defaultFuzzyCacheSize = 10000
	minFuzzyTokenLength   = 3
	maxFuzzyLengthDelta   = 2
	negationPenalty       = -0.8
)

// fuzzyResult caches the outcome of a fuzzy lookup: the matched keyword,
// or ok=false when no lexicon term cleared the threshold.
type fuzzyResult struct {
	keyword string
	ok      bool
}

// RuleBasedAnalyzer implements Analyzer over the fixed lexicon in
// lexicon.go, per spec.md §4.1's algorithm.
type RuleBasedAnalyzer struct {
	fuzzyEnabled   bool
	fuzzyThreshold float64
	cache          *lru.Cache[string, fuzzyResult]
}

// Option configures a RuleBasedAnalyzer at construction.
type Option func(*RuleBasedAnalyzer)

// WithFuzzyMatching toggles approximate lexicon matching.
func WithFuzzyMatching(enabled bool) Option {
	return func(a *RuleBasedAnalyzer) { a.fuzzyEnabled = enabled }
}

// WithFuzzyThreshold sets the minimum similarity ratio for a fuzzy match.
// Changing the threshold after construction would invalidate prior cache
// entries, so it is only configurable here, at construction.
func WithFuzzyThreshold(threshold float64) Option {
	return func(a *RuleBasedAnalyzer) { a.fuzzyThreshold = threshold }
}

// WithFuzzyCacheSize bounds the approximate-match cache, grounded on
// estuary-flow's lru.Cache usage for its SNI resolution cache.
func WithFuzzyCacheSize(size int) Option {
	return func(a *RuleBasedAnalyzer) {
		cache, err := lru.New[string, fuzzyResult](size)
		if err == nil {
			a.cache = cache
		}
	}
}

// NewRuleBasedAnalyzer constructs an analyzer with fuzzy matching enabled
// by default at the spec's 0.85 threshold and a 10000-entry cache.
func NewRuleBasedAnalyzer(opts ...Option) *RuleBasedAnalyzer {
	cache, _ := lru.New[string, fuzzyResult](defaultFuzzyCacheSize)
	a := &RuleBasedAnalyzer{
		fuzzyEnabled:   true,
		fuzzyThreshold: defaultFuzzyThreshold,
		cache:          cache,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze scores text deterministically in [-5, +5]. It never fails: any
// input, including empty or whitespace-only text, returns 0.0.
func (a *RuleBasedAnalyzer) Analyze(text string) float64 {
	tokens := tokenize(text)
	total := a.matchKeywords(tokens)
	return enhancedNeutralDetection(total, tokens)
}

// tokenize lowercases text, splits on whitespace, and strips the
// punctuation set .,!?;:()[]{}"'- from each token's edges.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.Fields(lower)

	tokens := make([]string, 0, len(fields))
	for _, word := range fields {
		cleaned := strings.Trim(word, `.,!?;:()[]{}"'-`)
		if cleaned != "" {
			tokens = append(tokens, cleaned)
		}
	}
	return tokens
}

// matchKeywords walks tokens applying intensifier/diminisher multipliers
// and negation scope, per spec.md §4.1 steps 2-6.
func (a *RuleBasedAnalyzer) matchKeywords(tokens []string) float64 {
	var total float64

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		intensity := 1.0

		if m, ok := intensifiers[token]; ok {
			intensity = m
			i++
			if i >= len(tokens) {
				break
			}
			token = tokens[i]
		} else if m, ok := diminishers[token]; ok {
			intensity = m
			i++
			if i >= len(tokens) {
				break
			}
			token = tokens[i]
		}

		negated := false
		if i > 0 {
			if _, ok := negationWords[tokens[i-1]]; ok {
				negated = true
			}
		}
		if !negated && i > 1 {
			if _, ok := negationWords[tokens[i-2]]; ok {
				negated = true
			}
		}

		matched, found := a.resolveKeyword(token)
		if found {
			score := keywordScores[matched] * intensity
			if negated {
				score = score * negationPenalty
			}
			total += score
		}
	}

	return total
}

// resolveKeyword looks up token in the lexicon, falling back to an
// approximate match when enabled.
func (a *RuleBasedAnalyzer) resolveKeyword(token string) (string, bool) {
	if _, ok := keywordScores[token]; ok {
		return token, true
	}
	if !a.fuzzyEnabled {
		return "", false
	}
	return a.fuzzyMatch(token)
}

// fuzzyMatch finds the single best lexicon term within maxFuzzyLengthDelta
// characters of token whose similarity ratio is the highest seen and at
// least fuzzyThreshold. Tokens shorter than minFuzzyTokenLength never
// fuzzy-match. Results are memoized in the analyzer's LRU cache.
func (a *RuleBasedAnalyzer) fuzzyMatch(token string) (string, bool) {
	if len(token) < minFuzzyTokenLength {
		return "", false
	}

	if a.cache != nil {
		if cached, ok := a.cache.Get(token); ok {
			return cached.keyword, cached.ok
		}
	}

	var best string
	var bestRatio float64

	for keyword := range keywordScores {
		if abs(len(token)-len(keyword)) > maxFuzzyLengthDelta {
			continue
		}
		ratio := similarityRatio(token, keyword)
		if ratio > bestRatio && ratio >= a.fuzzyThreshold {
			bestRatio = ratio
			best = keyword
		}
	}

	result := fuzzyResult{keyword: best, ok: best != ""}
	if a.cache != nil {
		a.cache.Add(token, result)
	}
	return result.keyword, result.ok
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// enhancedNeutralDetection applies spec.md §4.1's neutralization and
// clamping rules.
func enhancedNeutralDetection(score float64, tokens []string) float64 {
	var neutralCount int
	for _, t := range tokens {
		if _, ok := neutralContext[t]; ok {
			neutralCount++
		}
	}

	length := len(tokens)
	denom := length
	if denom < 1 {
		denom = 1
	}
	neutralRatio := float64(neutralCount) / float64(denom)

	if neutralRatio > 0.4 {
		return 0.0
	}

	var threshold float64
	switch {
	case length <= 3:
		threshold = 0.3
	case length <= 10:
		threshold = 0.5
	default:
		threshold = 0.7
	}

	if absf(score) <= threshold {
		return 0.0
	}

	return normalizeScore(score)
}

// normalizeScore clamps score to [-5, +5] and collapses the dead zone
// around zero per spec.md §4.1.
func normalizeScore(score float64) float64 {
	if score < -5 {
		score = -5.0
	} else if score > 5 {
		score = 5.0
	}

	if score >= -0.5 && score <= 0.5 {
		return 0.0
	}
	if score < -0.5 {
		return maxf(-5.0, score)
	}
	return minf(5.0, score)
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
