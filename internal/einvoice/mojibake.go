package einvoice

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Item names inside QR payloads are Big5 bytes, and some decoders mis-decode
// them as Shift-JIS, yielding strings full of halfwidth katakana and '､'.
// RepairMojibake re-encodes with the wrong codec and decodes with the likely
// right one, keeping the result only when it reads better than the input.

type readScore struct {
	cjk   int
	ascii int
	weird int
}

// scoreReadability rates how much a string looks like human-readable
// Traditional Chinese. Halfwidth katakana counts double as "weird" since it
// is the signature of this mojibake.
func scoreReadability(s string) readScore {
	var sc readScore
	for _, r := range s {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF:
			sc.cjk++
		case r >= 0x20 && r <= 0x7E:
			sc.ascii++
		case r >= 0xFF61 && r <= 0xFF9F:
			sc.weird += 2
		default:
			sc.weird++
		}
	}
	return sc
}

func betterThan(a, b readScore, lenA, lenB int) bool {
	if a.cjk != b.cjk {
		return a.cjk > b.cjk
	}
	if a.weird != b.weird {
		return a.weird < b.weird
	}
	if a.ascii != b.ascii {
		return a.ascii > b.ascii
	}
	return lenA < lenB
}

func roundTrip(s string, wrong *encoding.Encoder, right *encoding.Decoder) (string, bool) {
	raw, err := wrong.Bytes([]byte(s))
	if err != nil {
		return "", false
	}
	repaired, err := right.Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(repaired), true
}

// RepairMojibake attempts to recover a readable item name. Strings that
// already contain CJK text and no suspicious characters are returned as-is.
func RepairMojibake(s string) string {
	if s == "" {
		return ""
	}
	base := scoreReadability(s)
	if base.cjk >= 2 && base.weird == 0 {
		return s
	}

	candidates := []string{s}

	// Most common case: Shift-JIS/CP932 mojibake over Big5 bytes.
	for _, wrong := range []encoding.Encoding{japanese.ShiftJIS} {
		if repaired, ok := roundTrip(s, wrong.NewEncoder(), traditionalchinese.Big5.NewDecoder()); ok {
			candidates = append(candidates, repaired)
		}
	}

	// Fallback: some decoders effectively do a Latin-1 round trip.
	if repaired, ok := roundTrip(s, charmap.ISO8859_1.NewEncoder(), traditionalchinese.Big5.NewDecoder()); ok {
		candidates = append(candidates, repaired)
	}

	best := s
	bestScore := base
	for _, cand := range candidates[1:] {
		sc := scoreReadability(cand)
		if betterThan(sc, bestScore, len(cand), len(best)) {
			best = cand
			bestScore = sc
		}
	}

	// Only accept a rewrite that actually improves readability.
	if bestScore.cjk > base.cjk && bestScore.weird <= base.weird {
		return best
	}
	return s
}
