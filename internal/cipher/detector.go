package cipher

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/RowanDark/cipherkit/internal/bacon"
)

// englishFrequencies holds relative letter frequencies of English text, a..z.
var englishFrequencies = [26]float64{
	0.08167, 0.01492, 0.02782, 0.04253, 0.12702, 0.02228, 0.02015,
	0.06094, 0.06966, 0.00153, 0.00772, 0.04025, 0.02406, 0.06749,
	0.07507, 0.01929, 0.00095, 0.05987, 0.06327, 0.09056, 0.02758,
	0.00978, 0.02360, 0.00150, 0.01974, 0.00074,
}

const (
	minCaesarLetters = 8
	minCasingLetters = 10
	minConfidence    = 0.3
)

// SmartDetector recognises Baconian code streams, casing steganography and
// Caesar-shifted English
type SmartDetector struct{}

// NewSmartDetector creates a new smart detector
func NewSmartDetector() *SmartDetector {
	return &SmartDetector{}
}

// Detect attempts to identify the cipher of the input. Results are sorted by
// confidence and results below 0.3 are dropped.
func (d *SmartDetector) Detect(ctx context.Context, input []byte) ([]DetectionResult, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	text := string(input)

	detectors := []func(string) []DetectionResult{
		d.detectBacon,
		d.detectCasing,
		d.detectCaesar,
	}

	results := []DetectionResult{}
	for _, detect := range detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, detect(text)...)
	}

	sortResultsByConfidence(results)

	filtered := []DetectionResult{}
	for _, r := range results {
		if r.Confidence >= minConfidence {
			filtered = append(filtered, r)
		}
	}

	return filtered, nil
}

// SupportedEncodings returns a list of encodings this detector can identify
func (d *SmartDetector) SupportedEncodings() []string {
	return []string{
		"bacon",
		"bacon-casing",
		"caesar",
	}
}

// detectBacon checks whether every letter of the input is a code symbol
func (d *SmartDetector) detectBacon(text string) []DetectionResult {
	symbols := 0
	highCodes := false
	window := make([]byte, 0, bacon.CodeLen)
	for _, r := range text {
		switch unicode.ToLower(r) {
		case bacon.SymbolA, bacon.SymbolB:
			symbols++
			window = append(window, byte(unicode.ToLower(r)))
			if len(window) == bacon.CodeLen {
				// v1 assigns 24 codes, so "bbaaa" (24) and above only
				// occur in v2 streams.
				if string(window) >= "bbaaa" {
					highCodes = true
				}
				window = window[:0]
			}
		default:
			if unicode.IsLetter(r) {
				return nil
			}
		}
	}
	if symbols < bacon.CodeLen {
		return nil
	}

	confidence := 0.95
	reasoning := fmt.Sprintf("Only a/b symbols (%d), a whole number of five-symbol groups", symbols)
	if symbols%bacon.CodeLen != 0 {
		confidence = 0.6
		reasoning = fmt.Sprintf("Only a/b symbols, but %d is not a multiple of five", symbols)
	}

	results := []DetectionResult{{
		Encoding:   "bacon",
		Confidence: confidence,
		Reasoning:  reasoning + ", version 2 table",
		Operation:  "bacon_decode",
		Params:     map[string]interface{}{ParamVersion: int(bacon.V2)},
	}}
	if !highCodes {
		results = append(results, DetectionResult{
			Encoding:   "bacon",
			Confidence: confidence - 0.1,
			Reasoning:  reasoning + ", no group beyond the 24-letter table",
			Operation:  "bacon_decode",
			Params:     map[string]interface{}{ParamVersion: int(bacon.V1)},
		})
	}
	return results
}

// detectCasing flags text whose capitals sit inside words, the trace left by
// casing steganography
func (d *SmartDetector) detectCasing(text string) []DetectionResult {
	letters, inner := 0, 0
	prevLetter := false
	for _, r := range text {
		isLetter := unicode.IsLetter(r)
		if isLetter {
			letters++
			if prevLetter && unicode.IsUpper(r) {
				inner++
			}
		}
		prevLetter = isLetter
	}
	if letters < minCasingLetters || inner < 2 {
		return nil
	}

	ratio := float64(inner) / float64(letters)
	confidence := math.Min(0.45+ratio, 0.85)
	return []DetectionResult{{
		Encoding:   "bacon-casing",
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("%d of %d letters are capitals inside words", inner, letters),
		Operation:  "bacon_reveal",
		Params:     map[string]interface{}{ParamVersion: int(bacon.DefaultVersion)},
	}}
}

// detectCaesar scores every shift of the Latin letters against English
// letter frequencies and suggests the best decryption shift
func (d *SmartDetector) detectCaesar(text string) []DetectionResult {
	var counts [26]int
	total := 0
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			counts[r-'a']++
			total++
		}
	}
	if total < minCaesarLetters {
		return nil
	}

	best, bestScore := 0, math.Inf(1)
	unshifted := chiSquared(counts, total, 0)
	for shift := 0; shift < 26; shift++ {
		score := chiSquared(counts, total, shift)
		if score < bestScore {
			best, bestScore = shift, score
		}
	}
	if best == 0 || unshifted == 0 {
		return nil
	}

	improvement := 1 - bestScore/unshifted
	confidence := math.Max(minConfidence, math.Min(0.3+0.6*improvement, 0.9))
	return []DetectionResult{{
		Encoding:   "caesar",
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("Shift %d best matches English letter frequencies (chi-squared %.1f vs %.1f unshifted)", best, bestScore, unshifted),
		Operation:  "caesar_decrypt",
		Params:     map[string]interface{}{ParamShift: best},
	}}
}

// chiSquared compares the letter counts, read back by shift, with English
func chiSquared(counts [26]int, total, shift int) float64 {
	score := 0.0
	for i := 0; i < 26; i++ {
		observed := float64(counts[(i+shift)%26])
		expected := englishFrequencies[i] * float64(total)
		diff := observed - expected
		score += diff * diff / expected
	}
	return score
}

func sortResultsByConfidence(results []DetectionResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
}
