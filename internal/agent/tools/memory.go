package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Chative-creator-core/server/internal/agent/memory"
	"github.com/Chative-creator-core/server/internal/agent/model"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

type HistoryHit struct {
	Type    string    `json:"type"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
	Score   int       `json:"score"`
}

type HistorySearch struct {
	Query      string       `json:"query"`
	Results    []HistoryHit `json:"results"`
	TotalCount int          `json:"total_count"`
}

type SearchHit struct {
	Source string `json:"source"`
	Match  string `json:"match"`
}

type SearchResults struct {
	Query           string      `json:"query"`
	Results         []SearchHit `json:"results"`
	SourcesSearched []string    `json:"sources_searched"`
	TotalMatches    int         `json:"total_matches"`
}

const (
	defaultRecallLimit = 5
	defaultHistoryDays = 30
	insightScan        = 8
)

func queryArg(in model.ToolInput) string {
	return stringArg(in, "query", in.Message)
}

func (t *toolset) recallContext(ctx context.Context, in model.ToolInput) (any, error) {
	return t.memory.Recall(ctx, in.Channel.UserID, in.Channel.ChannelID, queryArg(in), intArg(in, "limit", defaultRecallLimit)), nil
}

func (t *toolset) searchHistory(ctx context.Context, in model.ToolInput) (any, error) {
	query := queryArg(in)
	terms := memory.Terms(query)
	to := t.now()
	from := to.AddDate(0, 0, -intArg(in, "days", defaultHistoryDays))

	rows, err := t.library.ChatBetween(ctx, in.Channel.UserID, in.Channel.ChannelID, from, to)
	if err != nil {
		return nil, err
	}
	hits := []HistoryHit{}
	for _, r := range rows {
		if s := score(terms, r.Content); s > 0 {
			hits = append(hits, HistoryHit{Type: "conversation", Content: r.Content, At: r.CreatedAt, Score: s})
		}
	}

	insights, err := t.library.RecentInsights(ctx, in.Channel.ChannelID, insightScan)
	if err != nil {
		logx.Warn().Err(err).Str("channel_id", in.Channel.ChannelID).Msg("weekly insights unavailable for history search")
	}
	for _, w := range insights {
		if s := score(terms, w.Summary); s > 0 {
			hits = append(hits, HistoryHit{Type: "insight", Content: w.Summary, At: w.WeekStart, Score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].At.After(hits[j].At)
	})
	total := len(hits)
	if limit := intArg(in, "limit", 10); len(hits) > limit {
		hits = hits[:limit]
	}
	return HistorySearch{Query: query, Results: hits, TotalCount: total}, nil
}

// searchData looks for the query terms across the fetched snapshot, weekly
// insights and long-term conversation memory.
func (t *toolset) searchData(ctx context.Context, in model.ToolInput) (any, error) {
	query := queryArg(in)
	terms := memory.Terms(query)
	out := SearchResults{Query: query, Results: []SearchHit{}, SourcesSearched: []string{}}

	if snap, ok := upstream[model.AnalyticsSnapshot](in, "fetch_analytics"); ok {
		out.SourcesSearched = append(out.SourcesSearched, "analytics")
		for _, fact := range snapshotFacts(snap) {
			if score(terms, fact) > 0 {
				out.Results = append(out.Results, SearchHit{Source: "analytics", Match: fact})
			}
		}
	}

	if insights, err := t.library.RecentInsights(ctx, in.Channel.ChannelID, insightScan); err == nil {
		out.SourcesSearched = append(out.SourcesSearched, "insights")
		for _, w := range insights {
			for _, line := range strings.Split(w.Summary, "\n") {
				if score(terms, line) > 0 {
					out.Results = append(out.Results, SearchHit{Source: "insights", Match: line})
				}
			}
		}
	} else {
		logx.Warn().Err(err).Str("channel_id", in.Channel.ChannelID).Msg("weekly insights unavailable for search")
	}

	recall := t.memory.Recall(ctx, in.Channel.UserID, in.Channel.ChannelID, query, defaultRecallLimit)
	if !recall.Unavailable {
		out.SourcesSearched = append(out.SourcesSearched, "history")
		for _, m := range recall.Matches {
			out.Results = append(out.Results, SearchHit{Source: "history", Match: m.Content})
		}
	}

	out.TotalMatches = len(out.Results)
	return out, nil
}

// snapshotFacts renders every available metric as a searchable sentence.
func snapshotFacts(snap model.AnalyticsSnapshot) []string {
	facts := highlights(snap)
	if snap.Impressions.Available {
		facts = append(facts, thousands(snap.Impressions.Value)+" impressions")
	}
	if snap.WatchMinutes.Available {
		facts = append(facts, thousands(snap.WatchMinutes.Value)+" minutes of watch time")
	}
	for _, s := range snap.TrafficSources {
		facts = append(facts, fmt.Sprintf("traffic source %s: %s views (%.1f%%)", strings.ToLower(s.Source), thousands(float64(s.Views)), s.Share))
	}
	return facts
}

func score(terms []string, content string) int {
	lc := strings.ToLower(content)
	n := 0
	for _, t := range terms {
		if strings.Contains(lc, t) {
			n++
		}
	}
	return n
}
