// Package sentiment implements the rule-based sentiment scorer: a
// deterministic, stateless function from feedback text to a score in
// [-5, +5], driven by a fixed lexicon, negation scope, intensifier and
// diminisher modifiers, neutral-context detection, and an optional
// approximate-match fallback for misspelled lexicon terms.
package sentiment
