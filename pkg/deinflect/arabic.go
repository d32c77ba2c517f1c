package deinflect

// arabicDiacritics are the combining marks (tashkeel) stripped to produce
// an alternate lookup candidate for Arabic text.
var arabicDiacritics = map[rune]bool{
	0x064B: true, // FATHATAN
	0x064C: true, // DAMMATAN
	0x064D: true, // KASRATAN
	0x064E: true, // FATHA
	0x064F: true, // DAMMA
	0x0650: true, // KASRA
	0x0651: true, // SHADDA
	0x0652: true, // SUKUN
	0x0653: true, // MADDAH ABOVE
	0x0654: true, // HAMZA ABOVE
	0x0655: true, // HAMZA BELOW
	0x0670: true, // SUPERSCRIPT ALEF
}

// StripDiacritics removes Arabic tashkeel marks from s.
func StripDiacritics(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if arabicDiacritics[r] {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
