// Package deinflect provides language identification, kana-normalization
// helpers, and a data-driven suffix rewrite engine that proposes
// candidate base forms for a surface form in a given language. Rules only
// rewrite word endings; prefix rewrites are not supported.
package deinflect

// Language tags the script/morphology family of a lookup, driving both
// candidate generation (pkg/lookup) and which bundled rule table (if any)
// Deinflect consults.
type Language int

const (
	Other Language = iota
	Japanese
	Korean
	Chinese
	Arabic
	English
	Spanish
	French
	German
	Portuguese
	Italian
	Dutch
	Norwegian
	Swedish
	Danish
	Finnish
	Estonian
	Latvian
	Romanian
	Polish
	Czech
	Hungarian
	Turkish
	Indonesian
	Vietnamese
	Tagalog
	Maltese
	Welsh
	Bulgarian
	Russian
	Ukrainian
	Greek
	Latin
	Mongolian
)

var languageNames = map[Language]string{
	Other:      "other",
	Japanese:   "japanese",
	Korean:     "korean",
	Chinese:    "chinese",
	Arabic:     "arabic",
	English:    "english",
	Spanish:    "spanish",
	French:     "french",
	German:     "german",
	Portuguese: "portuguese",
	Italian:    "italian",
	Dutch:      "dutch",
	Norwegian:  "norwegian",
	Swedish:    "swedish",
	Danish:     "danish",
	Finnish:    "finnish",
	Estonian:   "estonian",
	Latvian:    "latvian",
	Romanian:   "romanian",
	Polish:     "polish",
	Czech:      "czech",
	Hungarian:  "hungarian",
	Turkish:    "turkish",
	Indonesian: "indonesian",
	Vietnamese: "vietnamese",
	Tagalog:    "tagalog",
	Maltese:    "maltese",
	Welsh:      "welsh",
	Bulgarian:  "bulgarian",
	Russian:    "russian",
	Ukrainian:  "ukrainian",
	Greek:      "greek",
	Latin:      "latin",
	Mongolian:  "mongolian",
}

func (l Language) String() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return "other"
}

// ParseLanguage maps a lower-case language name to its Language value,
// defaulting to Other for anything unrecognized.
func ParseLanguage(name string) Language {
	for lang, n := range languageNames {
		if n == name {
			return lang
		}
	}
	return Other
}

// latinScript is the full set named in spec.md §4.4.2: languages that get a
// lower-cased variant plus deinflection, and are subject to the
// single-character skip policy.
var latinScript = map[Language]bool{
	English: true, Spanish: true, French: true, German: true, Portuguese: true,
	Italian: true, Dutch: true, Norwegian: true, Swedish: true, Danish: true,
	Finnish: true, Estonian: true, Latvian: true, Romanian: true, Polish: true,
	Czech: true, Hungarian: true, Turkish: true, Indonesian: true, Vietnamese: true,
	Tagalog: true, Maltese: true, Welsh: true, Bulgarian: true, Russian: true,
	Ukrainian: true, Greek: true, Latin: true, Mongolian: true,
}

// ShouldLowercase reports whether language belongs to the Latin-script set
// that receives a lower-cased variant before deinflection.
func ShouldLowercase(language Language) bool {
	return latinScript[language]
}

// ShouldSkipSingleCharacter reports whether single-character prefixes
// should be skipped for this language during window iteration (spec.md
// §4.4 step 4) — identical to the Latin-script set.
func ShouldSkipSingleCharacter(language Language) bool {
	return ShouldLowercase(language)
}

// IsIdeograph reports whether c lies in the CJK Unified Ideographs block
// used by the Japanese/Chinese candidate-validity filter.
func IsIdeograph(c rune) bool {
	return c >= 0x4E00 && c <= 0x9FFF
}

// KatakanaToHiragana shifts katakana codepoints in 0x30A1..0x30F6 down by
// 0x60 to their hiragana equivalent, leaving everything else unchanged.
func KatakanaToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}

const (
	aRow = "ぁあかがさざただなはばぱまやゃらわゎ"
	iRow = "ぃいきぎしじちぢにひびぴみりゐ"
	uRow = "ぅうくぐすずつづぬふぶぷむゆゅる"
	eRow = "ぇえけげせぜてでねへべぺめれゑ"
	oRow = "ぉおこごそぞとどのほぼぽもよょろを"
)

// prolongedVowel maps a preceding kana to the vowel substituted for a
// following 'ー' prolonged-sound mark. The O-row maps to 'う', not 'お' —
// preserved exactly as the source behaves.
func prolongedVowel(kana rune) (rune, bool) {
	switch {
	case containsRune(aRow, kana):
		return 'あ', true
	case containsRune(iRow, kana):
		return 'い', true
	case containsRune(uRow, kana):
		return 'う', true
	case containsRune(eRow, kana):
		return 'え', true
	case containsRune(oRow, kana):
		return 'う', true
	default:
		return 0, false
	}
}

func containsRune(set string, r rune) bool {
	for _, c := range set {
		if c == r {
			return true
		}
	}
	return false
}

// ReplaceProlongedSoundMark replaces each 'ー' with the vowel implied by the
// kana immediately preceding it (itself possibly a substitution made
// earlier in the same pass), leaving unmatched marks untouched.
func ReplaceProlongedSoundMark(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	var previous rune
	havePrevious := false

	for _, c := range runes {
		if c == 'ー' && havePrevious {
			if vowel, ok := prolongedVowel(previous); ok {
				out = append(out, vowel)
				previous = vowel
				havePrevious = true
				continue
			}
		}
		out = append(out, c)
		previous = c
		havePrevious = true
	}
	return string(out)
}
