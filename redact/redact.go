// Package redact scrubs secrets from text before it leaves the local
// database: context blocks injected into a Claude Code prompt and
// session-derived snippets sent to the Anthropic API. Recorded
// transcripts themselves are stored verbatim; redaction applies only on
// the way out.
package redact

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// candidatePattern matches runs of key-like characters worth an entropy
// check. Ten characters is short enough to catch truncated tokens in
// turn summaries and command lines.
var candidatePattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// entropyThreshold is the minimum Shannon entropy for a candidate to be
// treated as a secret. File paths and slugs stay well below it; API
// keys and signed tokens sit above 5.0.
const entropyThreshold = 4.5

var (
	gitleaksDetector     *detect.Detector
	gitleaksDetectorOnce sync.Once
)

func getDetector() *detect.Detector {
	gitleaksDetectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		gitleaksDetector = d
	})
	return gitleaksDetector
}

// span is a byte range of s to replace.
type span struct{ start, end int }

// String replaces secrets in s with "REDACTED". Detection is layered:
// high-entropy character runs catch unknown token formats, and the
// gitleaks default ruleset catches known low-entropy formats (AWS key
// ids and the like). A match from either layer is redacted.
func String(s string) string {
	var spans []span

	for _, loc := range candidatePattern.FindAllStringIndex(s, -1) {
		if shannonEntropy(s[loc[0]:loc[1]]) > entropyThreshold {
			spans = append(spans, span{loc[0], loc[1]})
		}
	}

	if d := getDetector(); d != nil {
		for _, f := range d.DetectString(s) {
			if f.Secret == "" {
				continue
			}
			searchFrom := 0
			for {
				idx := strings.Index(s[searchFrom:], f.Secret)
				if idx < 0 {
					break
				}
				absIdx := searchFrom + idx
				spans = append(spans, span{absIdx, absIdx + len(f.Secret)})
				searchFrom = absIdx + len(f.Secret)
			}
		}
	}

	if len(spans) == 0 {
		return s
	}

	// Overlapping detections collapse into one REDACTED marker
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})
	merged := []span{spans[0]}
	for _, r := range spans[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
		} else {
			merged = append(merged, r)
		}
	}

	var b strings.Builder
	prev := 0
	for _, r := range merged {
		b.WriteString(s[prev:r.start])
		b.WriteString("REDACTED")
		prev = r.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

// Strings redacts each element of list, returning the input slice
// unchanged when nothing matched.
func Strings(list []string) []string {
	changed := false
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = String(s)
		if out[i] != s {
			changed = true
		}
	}
	if !changed {
		return list
	}
	return out
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[byte]int)
	for i := range len(s) {
		freq[s[i]]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
