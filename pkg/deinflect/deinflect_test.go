package deinflect

import "testing"

func TestKatakanaToHiragana(t *testing.T) {
	got := KatakanaToHiragana("カタカナ")
	want := "かたかな"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestKatakanaToHiraganaLeavesOtherRunesAlone(t *testing.T) {
	got := KatakanaToHiragana("cat猫")
	if got != "cat猫" {
		t.Fatalf("expected non-katakana runes untouched, got %q", got)
	}
}

func TestReplaceProlongedSoundMarkORowQuirk(t *testing.T) {
	// 'こ' is in the O-row, but per the ported behavior the prolonged mark
	// after an O-row kana substitutes 'う', not 'お'.
	got := ReplaceProlongedSoundMark("こー")
	want := "こう"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReplaceProlongedSoundMarkARow(t *testing.T) {
	got := ReplaceProlongedSoundMark("かー")
	want := "かあ"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDeinflectEnglishFixedPoint(t *testing.T) {
	results := Deinflect(English, "running")
	found := false
	for _, r := range results {
		if r == "runn" || r == "runne" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a base-form candidate for 'running', got %v", results)
	}
}

func TestDeinflectUnknownLanguageReturnsNil(t *testing.T) {
	if got := Deinflect(Other, "anything"); got != nil {
		t.Fatalf("expected nil for language with no bundled table, got %v", got)
	}
}

func TestDeinflectNeverIncludesOriginal(t *testing.T) {
	for _, r := range Deinflect(English, "cats") {
		if r == "cats" {
			t.Fatalf("deinflection result should never include the original word")
		}
	}
}

func TestShouldLowercaseAndSkipSingleCharacter(t *testing.T) {
	if !ShouldLowercase(English) {
		t.Fatalf("expected English to be Latin-script")
	}
	if ShouldLowercase(Japanese) {
		t.Fatalf("expected Japanese not to be Latin-script")
	}
	if !ShouldSkipSingleCharacter(Russian) {
		t.Fatalf("expected Russian (Latin-script set member) to skip single chars")
	}
}

func TestIsIdeograph(t *testing.T) {
	if !IsIdeograph('猫') {
		t.Fatalf("expected 猫 to be an ideograph")
	}
	if IsIdeograph('a') {
		t.Fatalf("expected 'a' not to be an ideograph")
	}
}

func TestStripDiacritics(t *testing.T) {
	got := StripDiacritics("كَتَبَ")
	if got != "كتب" {
		t.Fatalf("got %q want %q", got, "كتب")
	}
}
