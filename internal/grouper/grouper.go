// Package grouper combines adjacent OCR word spans into semantic
// dimension spans, without merging independent neighboring
// dimensions. The scale of "adjacent" is derived per-call from the
// observed text size so the grouper adapts to drawings scanned at
// different resolutions.
package grouper

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/MeKo-Tech/balloonpipe/internal/patterns"
)

// Thresholds holds the dynamic scale derived from observed text
// height, used throughout the pairwise grouping predicate.
type Thresholds struct {
	AvgCharHeight float64
	HGap          float64
	VSameLine     float64
	VStack        float64
}

// DeriveThresholds computes avg_char_height (bounded [5,200]) from the
// heights of spans and derives the three scale-dependent thresholds.
func DeriveThresholds(spans []model.OcrSpan) Thresholds {
	avg := averageHeight(spans)
	if avg < 5 {
		avg = 5
	}
	if avg > 200 {
		avg = 200
	}
	return Thresholds{
		AvgCharHeight: avg,
		HGap:          math.Max(40, 3.0*avg),
		VSameLine:     0.6 * avg,
		VStack:        2.5 * avg,
	}
}

func averageHeight(spans []model.OcrSpan) float64 {
	if len(spans) == 0 {
		return 5
	}
	total := 0.0
	for _, s := range spans {
		total += float64(s.BBox.YMax - s.BBox.YMin)
	}
	return total / float64(len(spans))
}

var (
	reMixedFractionTail = regexp.MustCompile(`^\d+/\d+["']?$`)
	reFractionOnly      = regexp.MustCompile(`^\d+/\d+$`)
	reToleranceAttach   = regexp.MustCompile(`^[+\-±]\d+(?:\.\d+)?$`)
)

var compoundConnectors = map[string]bool{
	"x": true, "×": true, "wd.": true, "lg.": true, "key": true,
	"od": true, "id": true, "pitch": true, "teeth": true, "dia": true,
}

var continuationPunctuation = map[string]bool{
	"-": true, "/": true, "(": true, ")": true, ":": true, `"`: true, "'": true,
}

var unitsAfterNumber = map[string]bool{
	"in": true, "mm": true, "cm": true, `"`: true, "'": true, "deg": true,
}

var phraseStarters = map[string]bool{
	"for": true, "max": true, "min": true, "typ": true, "ref": true, "approx": true, "nominal": true,
}

var phraseTerminators = map[string]bool{
	"width": true, "length": true, "diameter": true, "depth": true, "height": true,
	"od": true, "id": true, "dia": true, "thk": true, "thickness": true,
	"travel": true, "shaft": true, "bore": true, "thread": true,
}

var verticalDescriptiveTail = map[string]bool{
	"flange": true, "tube": true, "od": true, "id": true, "pipe": true, "thread": true,
	"for": true, "pitch": true, "teeth": true, "max": true, "min": true, "typ": true,
	"diameter": true, "major": true, "minor": true,
}

// Group turns OCR word spans into merged dimension spans. Degenerate
// spans (zero width or height) must already have been discarded by
// the caller per the BBox invariant.
func Group(spans []model.OcrSpan) []model.OcrSpan {
	if len(spans) == 0 {
		return nil
	}

	th := DeriveThresholds(spans)
	ordered := sortedByReadingPosition(spans)

	consumed := make([]bool, len(ordered))
	var groups [][]int

	for i := range ordered {
		if consumed[i] {
			continue
		}
		group := []int{i}
		consumed[i] = true
		grew := true
		for grew {
			grew = false
			for j := range ordered {
				if consumed[j] {
					continue
				}
				if joinsGroup(ordered, group, j, th) {
					group = append(group, j)
					consumed[j] = true
					grew = true
				}
			}
		}
		groups = append(groups, group)
	}

	out := make([]model.OcrSpan, 0, len(groups))
	for _, g := range groups {
		out = append(out, mergeGroup(ordered, g, th))
	}

	slog.Debug("grouper: merged spans", "input", len(spans), "output", len(out),
		"avg_char_height", th.AvgCharHeight)

	return out
}

func sortedByReadingPosition(spans []model.OcrSpan) []model.OcrSpan {
	ordered := append([]model.OcrSpan(nil), spans...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].BBox.YMin != ordered[j].BBox.YMin {
			return ordered[i].BBox.YMin < ordered[j].BBox.YMin
		}
		return ordered[i].BBox.XMin < ordered[j].BBox.XMin
	})
	return ordered
}

// joinsGroup tests span j against every current member of group,
// merging if any member admits it via the horizontal or vertical
// predicate.
func joinsGroup(spans []model.OcrSpan, group []int, j int, th Thresholds) bool {
	for _, i := range group {
		a, b := spans[i], spans[j]
		if shouldGroup(a, b, th) || shouldGroup(b, a, th) {
			return true
		}
	}
	return false
}

// shouldGroup tests whether b should merge with a, where a is
// (approximately) to the left of or above b.
func shouldGroup(a, b model.OcrSpan, th Thresholds) bool {
	sameLine := math.Abs(float64(a.BBox.CenterY()-b.BBox.CenterY())) <= th.VSameLine
	if sameLine && a.BBox.XMin <= b.BBox.XMin {
		return shouldGroupHorizontal(a, b, th)
	}
	verticalGap := float64(b.BBox.YMin - a.BBox.YMax)
	if a.BBox.CenterY() < b.BBox.CenterY() && verticalGap <= th.VStack && closeX(a, b, th) {
		return shouldGroupVertical(a, b)
	}
	return false
}

func closeX(a, b model.OcrSpan, th Thresholds) bool {
	return math.Abs(float64(a.BBox.CenterX()-b.BBox.CenterX())) <= th.HGap
}

// shouldGroupHorizontal implements the 9 horizontal rules of §4.D.
func shouldGroupHorizontal(a, b model.OcrSpan, th Thresholds) bool {
	left := strings.TrimSpace(a.Text)
	right := strings.TrimSpace(b.Text)
	leftLower := strings.ToLower(left)
	rightLower := strings.ToLower(right)
	xGap := float64(b.BBox.XMin - a.BBox.XMax)

	// The words facing each other across the gap, e.g. "wd." in
	// `0.188" Wd.` and `7/8"` in `7/8" Lg. Key`.
	leftLast, rightFirst := "", ""
	if fields := strings.Fields(leftLower); len(fields) > 0 {
		leftLast = fields[len(fields)-1]
	}
	if fields := strings.Fields(rightLower); len(fields) > 0 {
		rightFirst = fields[0]
	}

	switch {
	// 1. modifier <-> dimension attachment, either order.
	case patterns.IsModifier(left) && patterns.IsDimensionText(right):
		return true
	case patterns.IsModifier(right) && patterns.IsDimensionText(left):
		return true
	// 2. mixed fraction: integer followed by a bare fraction.
	case isInteger(left) && reMixedFractionTail.MatchString(right):
		return true
	// 3. fraction + unit.
	case reFractionOnly.MatchString(left) && unitsAfterNumber[rightLower]:
		return true
	// 4. tolerance attachment.
	case reToleranceAttach.MatchString(right):
		return true
	// 5. compound connector on either side of the gap.
	case compoundConnectors[leftLast] || compoundConnectors[rightFirst]:
		return true
	// 6. continuation punctuation.
	case continuationPunctuation[left] || continuationPunctuation[right]:
		return true
	// 7. unit directly after a number.
	case isNumeric(left) && unitsAfterNumber[rightLower]:
		return true
	// 8. description phrase: enter phrase mode on a starter, continue through a terminator.
	case patterns.IsDimensionText(left) && phraseStarters[rightLower]:
		return true
	case phraseStarters[leftLower] && !phraseTerminators[leftLower]:
		return true
	case phraseTerminators[rightLower]:
		return true
	// 9. very small residual gap, guarded against merging two complete standalone dimensions.
	case xGap <= 15 && !(isStandaloneDimension(left) && isStandaloneDimension(right)):
		return true
	default:
		return false
	}
}

// shouldGroupVertical implements the vertical-stack rules plus the
// anti-merge safeguard of §4.D.
func shouldGroupVertical(a, b model.OcrSpan) bool {
	bText := strings.TrimSpace(b.Text)
	bLower := strings.ToLower(bText)

	isTolerance := patterns.IsTolerance(bText)
	isDescriptiveTail := verticalDescriptiveTail[bLower]
	startsForPhrase := bLower == "for" || strings.HasPrefix(bLower, "for ")

	if !isTolerance && !isDescriptiveTail {
		return false
	}

	if isCompleteFeature(a.Text) {
		// Anti-merge safeguard: a complete feature only accepts a
		// tolerance or a "For ..." continuation below it, never an
		// unrelated stacked label.
		return isTolerance || startsForPhrase
	}

	return true
}

func isInteger(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	_, ok := patterns.ExtractNumeric(s)
	return ok && (isInteger(s) || strings.ContainsAny(s, "."))
}

// isStandaloneDimension reports whether s already reads as a complete
// dimension on its own, e.g. `0.250"`.
func isStandaloneDimension(s string) bool {
	return patterns.IsDimensionText(s) && !patterns.IsModifier(s)
}

// isCompleteFeature reports whether s already parses as a complete
// feature description, e.g. "21 Teeth", "0.500 in".
func isCompleteFeature(s string) bool {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return patterns.IsDimensionText(s)
	}
	hasNumber := false
	for _, f := range fields {
		if _, ok := patterns.ExtractNumeric(f); ok {
			hasNumber = true
			break
		}
	}
	return hasNumber
}

// mergeGroup concatenates a group's members in (y,x) order into one
// span whose bbox is the coordinate-wise union and whose confidence is
// the arithmetic mean of the inputs.
func mergeGroup(spans []model.OcrSpan, group []int, th Thresholds) model.OcrSpan {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := spans[group[i]], spans[group[j]]
		if a.BBox.YMin != b.BBox.YMin {
			return a.BBox.YMin < b.BBox.YMin
		}
		return a.BBox.XMin < b.BBox.XMin
	})

	var textBuilder strings.Builder
	bbox := spans[group[0]].BBox
	confidenceSum := 0.0

	for idx, memberIdx := range group {
		s := spans[memberIdx]
		bbox = bbox.Union(s.BBox)
		confidenceSum += s.Confidence

		if idx > 0 {
			textBuilder.WriteString(" ")
		}
		textBuilder.WriteString(strings.TrimSpace(s.Text))
	}

	return model.OcrSpan{
		Text:       textBuilder.String(),
		BBox:       bbox,
		Confidence: confidenceSum / float64(len(group)),
	}
}
