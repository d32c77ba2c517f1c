// Package lookup implements the cursor-anchored, longest-prefix-first
// candidate search over imported dictionaries: given an input text and a
// byte offset, it produces a ranked list of entries by generating
// language-specific candidate surface forms and probing the store.
package lookup

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/kotoba-dict/yomitan-engine/pkg/codec"
	"github.com/kotoba-dict/yomitan-engine/pkg/deinflect"
	"github.com/kotoba-dict/yomitan-engine/pkg/store"
)

const (
	maxWindowChars      = 24
	maxKanjiWindowChars = 10
	missingPriority     = int64(999)
	missingKanjiFreq    = int64(999999)
)

// DictionaryConfig is the subset of a dictionary's registry state the
// lookup needs to filter/rank results, handed in by the engine so this
// package never has to take the registry lock itself.
type DictionaryConfig struct {
	Enabled  bool
	Priority int64
}

// Span is a closed-open character or byte range within the input text.
type Span struct {
	Start, End int
}

// Entry is one ranked dictionary hit.
type Entry struct {
	SpanChars      Span
	SpanBytes      Span
	DictionaryID   store.DictionaryID
	Headword       string
	Reading        string
	Term           string
	DefinitionTags []codec.Tag
	TermTags       []codec.Tag
	Content        []json.RawMessage
	Frequency      int64
}

// KanjiFrequency pairs a frequency value with the dictionary it came from.
type KanjiFrequency struct {
	DictionaryName string
	Value          string
}

// KanjiEntry is one ranked kanji-search hit.
type KanjiEntry struct {
	Character      string
	DictionaryName string
	Onyomi         []string
	Kunyomi        []string
	Tags           []string
	Meanings       []string
	Stats          map[string]string
	Frequencies    []KanjiFrequency
}

type candidate struct {
	word      string
	sourceLen int
}

// SnapToCharBoundary decrements offset until it lies on a valid UTF-8
// boundary within text, returning len(text) if offset is already past the
// end.
func SnapToCharBoundary(text string, offset int) int {
	if offset >= len(text) {
		return len(text)
	}
	i := offset
	for i > 0 && !isUTF8Boundary(text, i) {
		i--
	}
	return i
}

func isUTF8Boundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	// a byte is a continuation byte iff its top two bits are 10
	return s[i]&0xC0 != 0x80
}

// Search returns ranked entries for the word at cursorByteOffset in text,
// for the given language, probing store via db and filtering/ranking using
// dictConfigs (keyed by dictionary id).
func Search(db store.DBExecutor, text string, cursorByteOffset int, language deinflect.Language, dictConfigs map[store.DictionaryID]DictionaryConfig) []Entry {
	start := SnapToCharBoundary(text, cursorByteOffset)
	if start >= len(text) {
		return nil
	}

	searchText := text[start:]
	chars := []rune(searchText)
	if len(chars) > maxWindowChars {
		chars = chars[:maxWindowChars]
	}

	var results []Entry
	processed := map[string]bool{}

	for length := len(chars); length >= 1; length-- {
		substring := string(chars[:length])

		if deinflect.ShouldSkipSingleCharacter(language) && length < 2 &&
			!strings.EqualFold(substring, "a") && !strings.EqualFold(substring, "i") {
			continue
		}

		for _, cand := range generateCandidates(substring, language) {
			if !isValidCandidate(substring, cand.word, language) {
				continue
			}
			if processed[cand.word] {
				continue
			}
			processed[cand.word] = true

			hits, err := store.QueryTerms(db, cand.word)
			if err != nil {
				continue
			}

			for _, hit := range hits {
				cfg, known := dictConfigs[hit.DictionaryID]
				if known && !cfg.Enabled {
					continue
				}

				payload, ok := codec.Decode(hit.Payload)
				if !ok {
					continue
				}

				headword := cand.word
				if payload.HasHeadword {
					headword = payload.Headword
				}

				entry := Entry{
					SpanBytes:    Span{Start: 0, End: len(cand.word)},
					SpanChars:    Span{Start: 0, End: cand.sourceLen},
					DictionaryID: hit.DictionaryID,
					Headword:     headword,
					Term:         cand.word,
					Content:      payload.Content,
					Frequency:    payload.Popularity,
				}
				if payload.HasReading {
					entry.Reading = payload.Reading
				}
				if payload.HasDefTags {
					entry.DefinitionTags = codec.SplitTags(payload.DefinitionTags)
				}
				if payload.HasTermTags {
					entry.TermTags = codec.SplitTags(payload.TermTags)
				}

				results = append(results, entry)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.SpanChars.End != b.SpanChars.End {
			return a.SpanChars.End > b.SpanChars.End
		}
		prioA := priorityOf(dictConfigs, a.DictionaryID)
		prioB := priorityOf(dictConfigs, b.DictionaryID)
		if prioA != prioB {
			return prioA < prioB
		}
		return a.Frequency > b.Frequency
	})

	return results
}

func priorityOf(dictConfigs map[store.DictionaryID]DictionaryConfig, id store.DictionaryID) int64 {
	if cfg, ok := dictConfigs[id]; ok {
		return cfg.Priority
	}
	return missingPriority
}

func isValidCandidate(source, cand string, language deinflect.Language) bool {
	if source == cand {
		return true
	}
	if language != deinflect.Japanese && language != deinflect.Chinese {
		return true
	}

	sourceIdeographs := ideographSet(source)
	candIdeographs := ideographs(cand)
	if len(candIdeographs) == 0 {
		return true
	}
	for _, c := range candIdeographs {
		if sourceIdeographs[c] {
			return true
		}
	}
	return false
}

func ideographs(s string) []rune {
	var out []rune
	for _, r := range s {
		if deinflect.IsIdeograph(r) {
			out = append(out, r)
		}
	}
	return out
}

func ideographSet(s string) map[rune]bool {
	set := map[rune]bool{}
	for _, r := range s {
		if deinflect.IsIdeograph(r) {
			set[r] = true
		}
	}
	return set
}

func generateCandidates(text string, language deinflect.Language) []candidate {
	sourceLen := len([]rune(text))
	candidates := []candidate{{word: text, sourceLen: sourceLen}}

	addDeinflections := func(lang deinflect.Language, word string) {
		for _, base := range deinflect.Deinflect(lang, word) {
			if base == "" {
				continue
			}
			candidates = append(candidates, candidate{word: base, sourceLen: sourceLen})
		}
	}

	switch {
	case language == deinflect.Japanese:
		variants := map[string]bool{text: true}
		normalized := deinflect.KatakanaToHiragana(text)
		variants[normalized] = true
		variants[deinflect.ReplaceProlongedSoundMark(normalized)] = true
		for variant := range variants {
			addDeinflections(deinflect.Japanese, variant)
		}

	case language == deinflect.Korean:
		addDeinflections(deinflect.Korean, text)

	case deinflect.ShouldLowercase(language):
		lower := strings.ToLower(text)
		sources := []string{text}
		if lower != text {
			sources = append(sources, lower)
		}
		for _, source := range sources {
			addDeinflections(language, source)
		}

	case language == deinflect.Chinese:
		addDeinflections(deinflect.Chinese, text)

	case language == deinflect.Arabic:
		variants := map[string]bool{text: true}
		variants[deinflect.StripDiacritics(text)] = true
		for variant := range variants {
			addDeinflections(deinflect.Arabic, variant)
		}

	default:
		addDeinflections(language, text)
	}

	return candidates
}

// SearchKanji returns ranked kanji entries for the character(s) at
// cursorByteOffset in text.
func SearchKanji(db store.DBExecutor, text string, cursorByteOffset int, dictConfigs map[store.DictionaryID]DictionaryConfig) []KanjiEntry {
	start := SnapToCharBoundary(text, cursorByteOffset)
	if start >= len(text) {
		return nil
	}

	searchText := text[start:]
	chars := []rune(searchText)
	if len(chars) > maxKanjiWindowChars {
		chars = chars[:maxKanjiWindowChars]
	}

	var results []KanjiEntry

	for length := len(chars); length >= 1; length-- {
		character := string(chars[:length])

		kanjiHits, err := store.QueryKanji(db, character)
		if err != nil {
			continue
		}
		metaHits, _ := store.QueryKanjiMeta(db, character)

		freqsByName := map[string][]KanjiFrequency{}
		for _, meta := range metaHits {
			if meta.MetaType != "freq" {
				continue
			}
			value := meta.Data
			var decoded string
			if err := json.Unmarshal([]byte(meta.Data), &decoded); err == nil {
				value = decoded
			}
			freqsByName[meta.DictionaryName] = append(freqsByName[meta.DictionaryName], KanjiFrequency{
				DictionaryName: meta.DictionaryName,
				Value:          value,
			})
		}

		for _, hit := range kanjiHits {
			cfg, known := dictConfigs[hit.DictionaryID]
			if known && !cfg.Enabled {
				continue
			}

			dictName, err := store.DictionaryName(db, hit.DictionaryID)
			if err != nil {
				continue
			}

			var meanings []string
			_ = json.Unmarshal([]byte(hit.MeaningsJSON), &meanings)
			stats := map[string]string{}
			_ = json.Unmarshal([]byte(hit.StatsJSON), &stats)

			results = append(results, KanjiEntry{
				Character:      character,
				DictionaryName: dictName,
				Onyomi:         splitWhitespace(hit.Onyomi),
				Kunyomi:        splitWhitespace(hit.Kunyomi),
				Tags:           splitWhitespace(hit.Tags),
				Meanings:       meanings,
				Stats:          stats,
				Frequencies:    freqsByName[dictName],
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		lenA, lenB := len([]rune(a.Character)), len([]rune(b.Character))
		if lenA != lenB {
			return lenA > lenB
		}
		return firstFreqInt(a) < firstFreqInt(b)
	})

	return results
}

func firstFreqInt(e KanjiEntry) int64 {
	if len(e.Frequencies) == 0 {
		return missingKanjiFreq
	}
	v, err := strconv.ParseInt(e.Frequencies[0].Value, 10, 64)
	if err != nil {
		return missingKanjiFreq
	}
	return v
}

func splitWhitespace(s string) []string {
	return strings.Fields(s)
}
