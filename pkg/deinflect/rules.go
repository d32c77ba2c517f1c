package deinflect

import (
	"embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed data/*.json
var ruleData embed.FS

// Rule is one suffix rewrite: a word ending in Suffix is rewritten to end
// in Replacement instead. Rules are applied iteratively (fixed point or a
// depth limit), matching spec.md §4.4.1's "suffix/prefix rewrite rules
// gated by condition sets" in spirit; condition-set gating itself is
// collapsed here into the suffix match, since the engine's only observable
// contract is "given (language, word), return a finite set of candidate
// base forms" (spec.md §4.4.1).
type Rule struct {
	Suffix      string `json:"suffixIn"`
	Replacement string `json:"suffixOut"`
}

type ruleTable struct {
	Rules []Rule `json:"rules"`
}

const maxDeinflectDepth = 8

var languageFiles = map[Language]string{
	Japanese: "data/japanese.json",
	Korean:   "data/korean.json",
	English:  "data/english.json",
	German:   "data/german.json",
	French:   "data/french.json",
	Spanish:  "data/spanish.json",
	Chinese:  "data/chinese.json",
	Arabic:   "data/arabic.json",
	Russian:  "data/russian.json",
}

var (
	tableCacheMu sync.RWMutex
	tableCache   = map[Language][]Rule{}
)

// rulesFor loads and caches a language's rule table. pkg/lookup calls
// Deinflect (and so this) per candidate generated for every Lookup, from
// however many goroutines the caller drives concurrently, so tableCache
// needs the same read/write guarding engine.Engine applies to its own
// registry.
func rulesFor(language Language) ([]Rule, bool) {
	tableCacheMu.RLock()
	rules, ok := tableCache[language]
	tableCacheMu.RUnlock()
	if ok {
		return rules, true
	}

	path, ok := languageFiles[language]
	if !ok {
		return nil, false
	}
	raw, err := ruleData.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var table ruleTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, false
	}

	tableCacheMu.Lock()
	tableCache[language] = table.Rules
	tableCacheMu.Unlock()
	return table.Rules, true
}

// Deinflect returns the finite set of candidate base forms produced by
// iteratively applying language's bundled rewrite rules to word, up to a
// fixed point or maxDeinflectDepth. The original word itself is never
// included in the result; callers that want it should add it separately
// (as pkg/lookup does, per spec.md §4.4 step 3: "the original substring is
// always candidate #1").
func Deinflect(language Language, word string) []string {
	rules, ok := rulesFor(language)
	if !ok || word == "" {
		return nil
	}

	seen := map[string]bool{word: true}
	frontier := []string{word}
	var results []string

	for depth := 0; depth < maxDeinflectDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, form := range frontier {
			for _, rule := range rules {
				if rule.Suffix == "" || !strings.HasSuffix(form, rule.Suffix) {
					continue
				}
				candidate := strings.TrimSuffix(form, rule.Suffix) + rule.Replacement
				if candidate == "" || seen[candidate] {
					continue
				}
				seen[candidate] = true
				results = append(results, candidate)
				next = append(next, candidate)
			}
		}
		frontier = next
	}

	return results
}
