package analytics

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Title matching thresholds, on a 0..100 scale.
const (
	MatchThreshold          = 70.0
	HighConfidenceThreshold = 85.0
	AmbiguityGap            = 10.0

	// ResolveScanLimit is how many recent uploads a title is matched against.
	ResolveScanLimit = 100

	clarificationCandidates = 3
	minPartialRunes         = 5
)

type Decision string

const (
	DecisionAccepted  Decision = "accepted"
	DecisionAmbiguous Decision = "ambiguous"
	DecisionRejected  Decision = "rejected"
)

var (
	emoji = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}` +
		`\x{2702}-\x{27B0}\x{FE00}-\x{FE0F}\x{1F900}-\x{1F9FF}\x{1FA00}-\x{1FAFF}\x{2600}-\x{26FF}\x{200D}]+`)
	hashtag     = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

// VideoTitle is one candidate upload.
type VideoTitle struct {
	VideoID string
	Title   string
}

type ScoredTitle struct {
	VideoID string  `json:"video_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
}

// Resolution is the outcome of matching a title fragment against a channel's uploads.
type Resolution struct {
	Decision    Decision      `json:"decision"`
	TopScore    float64       `json:"top_score"`
	SecondScore float64       `json:"second_score"`
	Match       *ScoredTitle  `json:"match,omitempty"`
	Candidates  []ScoredTitle `json:"candidates,omitempty"`
}

// Clarification lists the closest candidates for the creator to pick from.
func (r Resolution) Clarification() string {
	var b strings.Builder
	b.WriteString("I found a few similar videos. Did you mean:\n")
	for i, c := range r.Candidates {
		fmt.Fprintf(&b, "  %d. %s (%.1f%%)\n", i+1, c.Title, c.Score)
	}
	return b.String()
}

// NormalizeTitle lowercases, folds accents and ligatures, and drops emoji,
// hashtags and punctuation.
func NormalizeTitle(s string) string {
	s = strings.ToLower(s)
	if folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), s); err == nil {
		s = folded
	}
	s = emoji.ReplaceAllString(s, "")
	s = hashtag.ReplaceAllString(s, "")
	s = punctuation.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ResolveTitle scores every title against fragment and decides whether the
// best one is a confident match. ok is false when the fragment or every title
// is empty after normalization.
func ResolveTitle(fragment string, titles []VideoTitle) (Resolution, bool) {
	f := NormalizeTitle(fragment)
	if f == "" {
		return Resolution{}, false
	}

	scored := make([]ScoredTitle, 0, len(titles))
	for _, t := range titles {
		n := NormalizeTitle(t.Title)
		if n == "" {
			continue
		}
		scored = append(scored, ScoredTitle{VideoID: t.VideoID, Title: t.Title, Score: round(TitleSimilarity(f, n), 1)})
	}
	if len(scored) == 0 {
		return Resolution{}, false
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	res := Resolution{TopScore: scored[0].Score}
	if len(scored) > 1 {
		res.SecondScore = scored[1].Score
	}
	res.Decision = decide(res.TopScore, res.SecondScore)
	if res.Decision == DecisionAccepted {
		res.Match = &scored[0]
		return res, true
	}
	res.Candidates = scored[:min(clarificationCandidates, len(scored))]
	return res, true
}

func decide(top, second float64) Decision {
	switch {
	case top >= HighConfidenceThreshold:
		return DecisionAccepted
	case top >= MatchThreshold && top-second >= AmbiguityGap:
		return DecisionAccepted
	case top >= MatchThreshold:
		return DecisionAmbiguous
	default:
		return DecisionRejected
	}
}

// TitleSimilarity is the best of the token-set, token-sort and partial ratios
// of two normalized titles. Partial matching only applies when the shorter
// string has at least five runes, so tiny fragments cannot score high.
func TitleSimilarity(a, b string) float64 {
	best := max(tokenSetRatio(a, b), tokenSortRatio(a, b))
	if min(len([]rune(a)), len([]rune(b))) >= minPartialRunes {
		best = max(best, partialRatio(a, b))
	}
	return best
}

// ratio is the indel similarity 2*LCS/(len(a)+len(b)) scaled to 0..100.
func ratio(a, b []rune) float64 {
	if len(a)+len(b) == 0 {
		return 100
	}
	return 200 * float64(lcs(a, b)) / float64(len(a)+len(b))
}

func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for _, ra := range a {
		for j, rb := range b {
			if ra == rb {
				cur[j+1] = prev[j] + 1
			} else {
				cur[j+1] = max(prev[j+1], cur[j])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func tokenSortRatio(a, b string) float64 {
	return ratio([]rune(sortedTokens(strings.Fields(a))), []rune(sortedTokens(strings.Fields(b))))
}

// tokenSetRatio compares the shared tokens with each side's full token set.
// A fragment whose words all appear in the title scores 100.
func tokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	var inter, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	if len(inter) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sect := sortedTokens(inter)
	withA := strings.TrimSpace(sect + " " + sortedTokens(onlyA))
	withB := strings.TrimSpace(sect + " " + sortedTokens(onlyB))
	rs, ra, rb := []rune(sect), []rune(withA), []rune(withB)
	return max(ratio(rs, ra), ratio(rs, rb), ratio(ra, rb))
}

// partialRatio slides the shorter string over the longer one and keeps the best window.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		best = max(best, ratio(short, long[i:i+len(short)]))
		if best == 100 {
			break
		}
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.Fields(s) {
		out[f] = struct{}{}
	}
	return out
}

func sortedTokens(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
