// Package patterns is a pure string-classification module shared by
// the token grouper and the fusion matcher. It holds no state beyond
// precompiled regular expressions and performs no I/O.
package patterns

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	reQuotedOrUnit    = regexp.MustCompile(`(?i)\d+\.?\d*(?:["']|in\b|mm\b|cm\b)`)
	reFraction        = regexp.MustCompile(`\d+\s*/\s*\d+`)
	reDiameterRadius  = regexp.MustCompile(`(?i)[ØøR]\d+`)
	reMetricThread    = regexp.MustCompile(`(?i)M\d+`)
	reThreadDash      = regexp.MustCompile(`\d+\s*-\s*\d+`)
	reDegrees         = regexp.MustCompile(`\d+\.?\d*\s*°`)

	reUTSThread  = regexp.MustCompile(`(?i)\d+/\d+\s*-\s*\d+`)
	reNumThread  = regexp.MustCompile(`(?i)#\d+\s*-\s*\d+`)
	reISOMetric  = regexp.MustCompile(`(?i)M\d+\s*[xX×]\s*\d+(?:\.\d+)?`)
	reNPTThread  = regexp.MustCompile(`(?i)\d+/\d+\s*NPT`)
	reUNThread   = regexp.MustCompile(`(?i)UN[CF]\b`)
	reACME       = regexp.MustCompile(`(?i)\bACME\b`)
	reTrapezoidal = regexp.MustCompile(`(?i)\bTr\d`)
	reButtress   = regexp.MustCompile(`(?i)\bBUTT\b`)

	reTolerance = regexp.MustCompile(`^[+\-±]\s*\.?\d+(?:\.\d+)?$`)

	reQuantityMod  = regexp.MustCompile(`(?i)^\d+[xX]$`)
	reQuantityPar  = regexp.MustCompile(`(?i)^\(\d+[xX]\)$`)
	reTyp          = regexp.MustCompile(`(?i)^TYP\.?$`)
	reRef          = regexp.MustCompile(`(?i)^REF\.?$`)
	rePlaces       = regexp.MustCompile(`(?i)^\d+\s*PLACES$`)

	reMixedFractionExtract = regexp.MustCompile(`^(\d+)\s+(\d+)\s*/\s*(\d+)`)
	reDecimal        = regexp.MustCompile(`-?\d+\.?\d*`)
	reFractionExtract = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

	reNonNormalChars = regexp.MustCompile(`[^\w.\-+/]`)
)

// IsDimensionText reports whether s looks like a dimension callout:
// any digit plus one of a decimal-with-unit, fraction, diameter/radius
// prefix, thread operator, ± tolerance sign, or degree mark.
func IsDimensionText(s string) bool {
	s = strings.TrimSpace(s)
	if !hasDigit(s) {
		return false
	}
	switch {
	case reQuotedOrUnit.MatchString(s):
		return true
	case reFraction.MatchString(s):
		return true
	case reDiameterRadius.MatchString(s):
		return true
	case reMetricThread.MatchString(s):
		return true
	case reThreadDash.MatchString(s):
		return true
	case reDegrees.MatchString(s):
		return true
	case strings.Contains(s, "±"):
		return true
	default:
		return false
	}
}

// IsThreadCallout reports whether s matches a standardized thread
// specification: UTS, ISO metric, NPT, UNC/UNF, ACME, trapezoidal, or
// buttress.
func IsThreadCallout(s string) bool {
	switch {
	case reUTSThread.MatchString(s):
		return true
	case reNumThread.MatchString(s):
		return true
	case reISOMetric.MatchString(s):
		return true
	case reNPTThread.MatchString(s):
		return true
	case reUNThread.MatchString(s):
		return true
	case reACME.MatchString(s):
		return true
	case reTrapezoidal.MatchString(s):
		return true
	case reButtress.MatchString(s):
		return true
	default:
		return false
	}
}

// IsTolerance reports whether s is a bare signed tolerance value, e.g.
// "+0.005", "-.003", "±0.01".
func IsTolerance(s string) bool {
	return reTolerance.MatchString(strings.TrimSpace(s))
}

// IsModifier reports whether s is a quantity or typicality modifier,
// e.g. "4X", "(4X)", "TYP", "REF".
func IsModifier(s string) bool {
	s = strings.TrimSpace(s)
	switch {
	case reQuantityMod.MatchString(s):
		return true
	case reQuantityPar.MatchString(s):
		return true
	case reTyp.MatchString(s):
		return true
	case reRef.MatchString(s):
		return true
	case rePlaces.MatchString(s):
		return true
	default:
		return false
	}
}

// ExtractNumeric pulls a numeric value from s, trying a leading mixed
// fraction ("3 1/4") first, then a bare fraction ("3/4"), then a
// decimal literal. Returns false if s carries no recognizable number.
func ExtractNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)

	if m := reMixedFractionExtract.FindStringSubmatch(s); m != nil {
		whole, errW := strconv.ParseFloat(m[1], 64)
		num, errN := strconv.ParseFloat(m[2], 64)
		den, errD := strconv.ParseFloat(m[3], 64)
		if errW == nil && errN == nil && errD == nil && den != 0 {
			return whole + num/den, true
		}
	}

	if m := reFractionExtract.FindStringSubmatch(s); m != nil {
		num, errN := strconv.ParseFloat(m[1], 64)
		den, errD := strconv.ParseFloat(m[2], 64)
		if errN == nil && errD == nil && den != 0 {
			return num / den, true
		}
	}

	if m := reDecimal.FindString(s); m != "" && m != "-" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v, true
		}
	}

	return 0, false
}

// Normalize canonicalizes s for matching: fold full-width forms
// (scanned drawings sourced from double-byte CAD systems sometimes
// carry full-width digits and symbols), lowercase, map the diameter
// glyphs ø and ⌀ to "o", rewrite "±" as "+-" (a written "+/-" is kept
// as is), drop degree and quote marks, remove all whitespace, and drop
// characters outside [\w.\-+/].
func Normalize(s string) string {
	s = width.Fold.String(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ø", "o")
	s = strings.ReplaceAll(s, "⌀", "o")
	s = strings.ReplaceAll(s, "°", "")
	s = strings.ReplaceAll(s, "±", "+-")
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.Join(strings.Fields(s), "")
	s = reNonNormalChars.ReplaceAllString(s, "")
	return s
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
