package digest

import (
	"strings"
	"testing"

	"issueboard/internal/domain"
)

func TestRenderMarkdown(t *testing.T) {
	start, end := "2024-03-01", "2024-03-07"
	report := domain.Report{
		Filters:             domain.ReportFilters{StartDate: &start, EndDate: &end, ProductLine: "online", MinCount: 2},
		TotalTicketsInScope: 10,
		TopIssues: []domain.TopIssueEntry{
			{
				Summary:         "登录失败",
				Count:           5,
				Platform:        "iOS(3), Android(2)",
				RatioInFiltered: 50,
				TicketLinks:     []string{"l1", "l2", "l3", "l4", "l5"},
			},
			{Summary: "直播卡顿", Count: 2, Platform: "PC(2)", RatioInFiltered: 20, TicketLinks: []string{"record:r9"}},
		},
	}

	got := RenderMarkdown(report, "Top issues", "Login dominates.")
	want := `# Top issues

_window 2024-03-01 to 2024-03-07, product line online, min count 2_

Tickets in scope: 10

Login dominates.

1. **登录失败** (5 tickets, 50.00%)
   - Platforms: iOS(3), Android(2)
   - l1
   - l2
   - l3
   - and 2 more
2. **直播卡顿** (2 tickets, 20.00%)
   - Platforms: PC(2)
   - record:r9
`
	if got != want {
		t.Fatalf("unexpected markdown:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	got := RenderMarkdown(domain.Report{Filters: domain.ReportFilters{MinCount: 1}}, "Top issues", "")
	if !strings.Contains(got, "_min count 1_") {
		t.Fatalf("expected bare scope line:\n%s", got)
	}
	if !strings.HasSuffix(got, "No recurring issues in this window.\n") {
		t.Fatalf("expected empty notice:\n%s", got)
	}
}
