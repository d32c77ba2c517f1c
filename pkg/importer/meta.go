package importer

import (
	"encoding/json"
	"fmt"
)

// parseFrequencyValue extracts a display string and an optional specific
// reading for a "freq" term-meta or kanji-meta entry. The display value
// prefers data.frequency.displayValue, then data.frequency.value
// (stringified), then the raw data blob itself stringified if nothing else
// produced a non-empty result. The reading, if data carries one, lets a
// term-meta row attach its frequency to one specific reading of the term
// rather than the bare headword.
func parseFrequencyValue(data json.RawMessage) (displayValue string, reading string, ok bool) {
	var outer struct {
		Reading   string          `json:"reading"`
		Frequency json.RawMessage `json:"frequency"`
	}
	if err := json.Unmarshal(data, &outer); err == nil {
		reading = outer.Reading
		if len(outer.Frequency) > 0 {
			var withDisplay struct {
				DisplayValue *string         `json:"displayValue"`
				Value        json.RawMessage `json:"value"`
			}
			if err := json.Unmarshal(outer.Frequency, &withDisplay); err == nil {
				if withDisplay.DisplayValue != nil && *withDisplay.DisplayValue != "" {
					return *withDisplay.DisplayValue, reading, true
				}
				if s := stringifyRaw(withDisplay.Value); s != "" {
					return s, reading, true
				}
			}
			if s := stringifyRaw(outer.Frequency); s != "" {
				return s, reading, true
			}
		}
	}

	if s := stringifyRaw(data); s != "" {
		return s, reading, true
	}
	return string(data), reading, true
}

func stringifyRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	}
	return ""
}

type pitchAccent struct {
	Position int      `json:"position"`
	Nasal    []int    `json:"nasal,omitempty"`
	Devoice  []int    `json:"devoice,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type pitchMeta struct {
	Reading string        `json:"reading"`
	Pitches []pitchAccent `json:"pitches"`
}

// parsePitchMeta builds the synthetic "Pitch:<json>" content string for a
// "pitch" term-meta entry, returning the entry's reading alongside it so
// the caller can attach the synthetic row to that specific reading.
func parsePitchMeta(data json.RawMessage) (content string, reading string, ok bool) {
	var raw struct {
		Reading string `json:"reading"`
		Pitches []struct {
			Position int      `json:"position"`
			Nasal    []int    `json:"nasal"`
			Devoice  []int    `json:"devoice"`
			Tags     []string `json:"tags"`
		} `json:"pitches"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", "", false
	}

	meta := pitchMeta{Reading: raw.Reading}
	for _, p := range raw.Pitches {
		meta.Pitches = append(meta.Pitches, pitchAccent{
			Position: p.Position,
			Nasal:    p.Nasal,
			Devoice:  p.Devoice,
			Tags:     p.Tags,
		})
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return "", "", false
	}
	return "Pitch:" + string(encoded), raw.Reading, true
}

type ipaTranscription struct {
	IPA  string   `json:"ipa"`
	Tags []string `json:"tags,omitempty"`
}

type ipaMeta struct {
	Reading        string             `json:"reading"`
	Transcriptions []ipaTranscription `json:"transcriptions"`
}

// parseIPAMeta builds the synthetic "IPA:<json>" content string for an
// "ipa" term-meta entry, dropping any transcription whose ipa field is
// empty, and returns the entry's reading alongside it.
func parseIPAMeta(data json.RawMessage) (content string, reading string, ok bool) {
	var raw struct {
		Reading        string `json:"reading"`
		Transcriptions []struct {
			IPA  string   `json:"ipa"`
			Tags []string `json:"tags"`
		} `json:"transcriptions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", "", false
	}

	meta := ipaMeta{Reading: raw.Reading}
	for _, t := range raw.Transcriptions {
		if t.IPA == "" {
			continue
		}
		meta.Transcriptions = append(meta.Transcriptions, ipaTranscription{IPA: t.IPA, Tags: t.Tags})
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return "", "", false
	}
	return "IPA:" + string(encoded), raw.Reading, true
}
