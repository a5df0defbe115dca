// Package fusion reconciles VLM dimension strings (semantically
// accurate, spatially approximate) against grouped OCR spans
// (spatially accurate, semantically raw) into final Dimension
// records. The VLM's text is authoritative on value; OCR is
// authoritative on geometry.
package fusion

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/MeKo-Tech/balloonpipe/internal/patterns"
)

// VirtualBBoxWidth and VirtualBBoxHeight are the fixed synthetic box
// dimensions for Strategy 4 (virtual placement). Per spec Open
// Question OQ2 these stay fixed rather than scaling with
// avg_char_height.
const (
	VirtualBBoxWidth  = 60
	VirtualBBoxHeight = 30

	strategy1MinTextSim  = 0.15
	strategy1MinLoc      = 0.3
	strategy1MinCombined = 0.5
	strategy2MinTextSim  = 0.5
	strategy2HighTextSim = 0.8
	strategy2LocWeight   = 1.5
	strategy3MaxCombine  = 6
	strategy3MinTextSim  = 0.7
	strategy4MinConf     = 0.75
)

// Match fuses one page's VLM entries against its grouped OCR spans,
// falling back to raw (ungrouped) spans for Strategy 3, and to virtual
// placement for Strategy 4. avgCharHeight must be the same scale the
// grouper derived for this page.
func Match(vlmDims []model.VlmDimension, grouped, raw []model.OcrSpan, avgCharHeight float64) []model.Dimension {
	maxDist := math.Max(150, 5.0*avgCharHeight)
	used := make([]bool, len(grouped))
	usedRaw := make([]bool, len(raw))

	out := make([]model.Dimension, 0, len(vlmDims))
	for _, v := range vlmDims {
		target := targetPoint(v)

		if d, ok := matchStrategy1(v, target, grouped, used, maxDist); ok {
			consumeContained(grouped, used, d.BBox)
			consumeContained(raw, usedRaw, d.BBox)
			out = append(out, d)
			continue
		}
		if d, ok := matchStrategy2(v, target, grouped, used, maxDist); ok {
			consumeContained(grouped, used, d.BBox)
			consumeContained(raw, usedRaw, d.BBox)
			out = append(out, d)
			continue
		}
		if d, ok := matchStrategy3(v, target, raw, usedRaw); ok {
			out = append(out, d)
			continue
		}
		if d, ok := matchStrategy4(v); ok {
			out = append(out, d)
			continue
		}
		slog.Debug("fusion: no match for vlm dimension", "value", v.Value)
	}
	return out
}

// consumeContained marks any still-unused span whose bbox lies
// entirely inside winner as used. Applied to the grouped spans (per
// spec.md's OQ1), a modifier span the grouper left un-merged (e.g. a
// stray "2X" the token grouper failed to attach) but that falls inside
// the bbox a VLM entry was just matched against is not eligible to
// separately match a later VLM entry. Applied to the raw spans, it
// keeps Strategy 3 from reusing characters a Strategy-1/2 match
// already covers (P4).
func consumeContained(grouped []model.OcrSpan, used []bool, winner model.BBox) {
	for i, o := range grouped {
		if used[i] {
			continue
		}
		if containedIn(o.BBox, winner) {
			used[i] = true
		}
	}
}

func containedIn(inner, outer model.BBox) bool {
	return inner.XMin >= outer.XMin && inner.XMax <= outer.XMax &&
		inner.YMin >= outer.YMin && inner.YMax <= outer.YMax
}

func targetPoint(v model.VlmDimension) [2]float64 {
	return [2]float64{v.XPercent * 10, v.YPercent * 10}
}

func distance(x, y float64, bbox model.BBox) float64 {
	dx := x - float64(bbox.CenterX())
	dy := y - float64(bbox.CenterY())
	return math.Hypot(dx, dy)
}

// textSim scores similarity as defined in §4.F: exact normalized match
// is 1.0, substring containment is 0.8, otherwise the LCS-length ratio
// against the longer string.
func textSim(a, b string) float64 {
	na, nb := patterns.Normalize(a), patterns.Normalize(b)
	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.8
	}
	lcs := longestCommonSubsequence(na, nb)
	longer := len(na)
	if len(nb) > longer {
		longer = len(nb)
	}
	if longer == 0 {
		return 0
	}
	return float64(lcs) / float64(longer)
}

func longestCommonSubsequence(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// matchStrategy1 is the combined location+text score over grouped OCR.
func matchStrategy1(v model.VlmDimension, target [2]float64, grouped []model.OcrSpan, used []bool, maxDist float64) (model.Dimension, bool) {
	x, y := target[0], target[1]
	bestIdx := -1
	bestScore := 0.0

	for i, o := range grouped {
		if used[i] {
			continue
		}
		ts := textSim(v.Value, o.Text)
		if ts < strategy1MinTextSim {
			continue
		}
		loc := math.Max(0, 1-distance(x, y, o.BBox)/maxDist)
		if loc > strategy1MinLoc && ts > strategy1MinLoc {
			score := 0.6*loc + 0.4*ts
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
	}

	if bestIdx < 0 || bestScore < strategy1MinCombined {
		return model.Dimension{}, false
	}

	used[bestIdx] = true
	return dimensionFrom(v, grouped[bestIdx].BBox, v.Confidence), true
}

// matchStrategy2 is the high-text-similarity fallback.
func matchStrategy2(v model.VlmDimension, target [2]float64, grouped []model.OcrSpan, used []bool, maxDist float64) (model.Dimension, bool) {
	x, y := target[0], target[1]
	bestIdx := -1
	bestDist := math.Inf(1)
	bestTS := -1.0

	for i, o := range grouped {
		if used[i] {
			continue
		}
		ts := textSim(v.Value, o.Text)
		if ts < strategy2MinTextSim {
			continue
		}
		d := distance(x, y, o.BBox)
		allowed := maxDist
		if ts > strategy2HighTextSim {
			allowed = strategy2LocWeight * maxDist
		}
		if d > allowed {
			continue
		}
		if d < bestDist || (d == bestDist && ts > bestTS) {
			bestDist = d
			bestTS = ts
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return model.Dimension{}, false
	}
	used[bestIdx] = true
	return dimensionFrom(v, grouped[bestIdx].BBox, v.Confidence), true
}

// matchStrategy3 combines raw OCR spans nearest the target location,
// trying decreasing-size subsets until one's concatenation matches the
// target value closely enough. Spans already consumed by an earlier
// VLM entry's Strategy-3 match are excluded, and the winning subset is
// marked used in usedRaw so no raw span contributes to more than one
// fused dimension (P4).
func matchStrategy3(v model.VlmDimension, target [2]float64, raw []model.OcrSpan, usedRaw []bool) (model.Dimension, bool) {
	x, y := target[0], target[1]
	if len(raw) == 0 {
		return model.Dimension{}, false
	}

	type candidate struct {
		idx  int
		span model.OcrSpan
		dist float64
	}
	var candidates []candidate
	for i, s := range raw {
		if usedRaw[i] {
			continue
		}
		candidates = append(candidates, candidate{idx: i, span: s, dist: distance(x, y, s.BBox)})
	}
	if len(candidates) == 0 {
		return model.Dimension{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	n := len(candidates)
	if n > strategy3MaxCombine {
		n = strategy3MaxCombine
	}
	nearest := candidates[:n]

	for size := n; size >= 1; size-- {
		subset := append([]candidate(nil), nearest[:size]...)
		sort.Slice(subset, func(i, j int) bool {
			a, b := subset[i].span, subset[j].span
			if a.BBox.YMin != b.BBox.YMin {
				return a.BBox.YMin < b.BBox.YMin
			}
			return a.BBox.XMin < b.BBox.XMin
		})

		var textBuilder strings.Builder
		bbox := subset[0].span.BBox
		confidenceSum := 0.0
		for i, c := range subset {
			if i > 0 {
				textBuilder.WriteString(" ")
			}
			textBuilder.WriteString(strings.TrimSpace(c.span.Text))
			bbox = bbox.Union(c.span.BBox)
			confidenceSum += c.span.Confidence
		}

		combinedText := textBuilder.String()
		if textSim(v.Value, combinedText) >= strategy3MinTextSim {
			for _, c := range subset {
				usedRaw[c.idx] = true
			}
			return dimensionFrom(v, bbox, confidenceSum/float64(len(subset))), true
		}
	}

	return model.Dimension{}, false
}

// matchStrategy4 emits a synthetic placement when the VLM is
// confident but OCR entirely missed the characters.
func matchStrategy4(v model.VlmDimension) (model.Dimension, bool) {
	if v.Confidence < strategy4MinConf {
		return model.Dimension{}, false
	}
	target := targetPoint(v)
	cx, cy := int(target[0]), int(target[1])
	bbox := model.BBox{
		XMin: cx - VirtualBBoxWidth/2,
		YMin: cy - VirtualBBoxHeight/2,
		XMax: cx + VirtualBBoxWidth/2,
		YMax: cy + VirtualBBoxHeight/2,
	}.Clamp()
	return dimensionFrom(v, bbox, v.Confidence), true
}

func dimensionFrom(v model.VlmDimension, bbox model.BBox, confidence float64) model.Dimension {
	return model.Dimension{
		Value:      v.Value,
		BBox:       bbox,
		Confidence: confidence,
	}
}
