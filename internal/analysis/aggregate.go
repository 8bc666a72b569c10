package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"issueboard/internal/domain"
)

const (
	summaryMaxRunes = 40
	summaryEllipsis = "..."
)

// Query selects the tickets a report covers. EndDate is expected to be
// already stretched to the end of its day by the caller. Location is used
// for dates that carry no zone of their own; nil means UTC.
type Query struct {
	StartDate   *time.Time
	EndDate     *time.Time
	ProductLine string
	MinCount    int
	Location    *time.Location
}

// AnalyzeTopIssues normalizes, filters and clusters records, and returns the
// clusters with at least MinCount members ranked by size. It holds no state
// between calls and never fails on malformed records.
func AnalyzeTopIssues(records []domain.RawRecord, q Query) domain.Report {
	tickets := make([]domain.NormalizedTicket, 0, len(records))
	for _, rec := range records {
		t := NormalizeRecord(rec, q.Location)
		if q.admits(t) {
			tickets = append(tickets, t)
		}
	}

	total := len(tickets)
	minCount := q.MinCount
	if minCount < 1 {
		minCount = 1
	}

	entries := make([]domain.TopIssueEntry, 0)
	for _, c := range ClusterTickets(tickets) {
		if len(c.Members) < minCount {
			continue
		}
		entries = append(entries, buildEntry(c, total))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})

	pie := domain.PieChart{
		Labels: make([]string, 0, len(entries)),
		Values: make([]int, 0, len(entries)),
	}
	for _, e := range entries {
		pie.Labels = append(pie.Labels, e.Summary)
		pie.Values = append(pie.Values, e.Count)
	}

	return domain.Report{
		Filters:             q.echo(),
		TotalTicketsInScope: total,
		TopIssues:           entries,
		PieChart:            pie,
	}
}

func (q Query) admits(t domain.NormalizedTicket) bool {
	day, dated := t.ReceivedDay()
	if q.StartDate != nil && (!dated || day < domain.DayKey(*q.StartDate)) {
		return false
	}
	if q.EndDate != nil && (!dated || day > domain.DayKey(*q.EndDate)) {
		return false
	}
	if q.ProductLine != "" && !strings.Contains(strings.ToLower(t.ProductLine), strings.ToLower(q.ProductLine)) {
		return false
	}
	return true
}

func (q Query) echo() domain.ReportFilters {
	f := domain.ReportFilters{
		ProductLine: q.ProductLine,
		MinCount:    q.MinCount,
	}
	if q.StartDate != nil {
		s := FormatDate(*q.StartDate)
		f.StartDate = &s
	}
	if q.EndDate != nil {
		s := FormatDate(*q.EndDate)
		f.EndDate = &s
	}
	return f
}

func buildEntry(c *Cluster, total int) domain.TopIssueEntry {
	count := len(c.Members)
	links := make([]string, 0, count)
	ids := make([]string, 0, count)
	for _, m := range c.Members {
		links = append(links, m.TicketLink)
		ids = append(ids, m.RecordID)
	}

	ratio := 0.0
	if total > 0 {
		ratio = math.Round(float64(count)/float64(total)*100*100) / 100
	}

	return domain.TopIssueEntry{
		Summary:         Summarize(c.Members[0].IssueText),
		Count:           count,
		Platform:        FormatPlatforms(c.PlatformCounts()),
		RatioInFiltered: ratio,
		TicketLinks:     links,
		RecordIDs:       ids,
	}
}

// Summarize collapses whitespace and cuts text to summaryMaxRunes runes.
func Summarize(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= summaryMaxRunes {
		return collapsed
	}
	return string(runes[:summaryMaxRunes]) + summaryEllipsis
}

// FormatPlatforms renders counts as "name(count)" sorted by count, keeping
// first-seen order among equal counts.
func FormatPlatforms(counts []PlatformCount) string {
	sorted := make([]PlatformCount, len(counts))
	copy(sorted, counts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	parts := make([]string, len(sorted))
	for i, pc := range sorted {
		parts[i] = fmt.Sprintf("%s(%d)", pc.Name, pc.Count)
	}
	return strings.Join(parts, ", ")
}
