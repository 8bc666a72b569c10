package digest

import (
	"fmt"
	"strings"

	"issueboard/internal/domain"
)

const maxLinksPerIssue = 3

// RenderMarkdown formats a report as a Slack-friendly markdown digest.
func RenderMarkdown(report domain.Report, title, narrative string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	f := report.Filters
	var scope []string
	if f.StartDate != nil || f.EndDate != nil {
		scope = append(scope, fmt.Sprintf("window %s to %s", orDash(f.StartDate), orDash(f.EndDate)))
	}
	if f.ProductLine != "" {
		scope = append(scope, "product line "+f.ProductLine)
	}
	scope = append(scope, fmt.Sprintf("min count %d", f.MinCount))
	fmt.Fprintf(&b, "_%s_\n\n", strings.Join(scope, ", "))
	fmt.Fprintf(&b, "Tickets in scope: %d\n\n", report.TotalTicketsInScope)

	if narrative = strings.TrimSpace(narrative); narrative != "" {
		b.WriteString(narrative)
		b.WriteString("\n\n")
	}

	if len(report.TopIssues) == 0 {
		b.WriteString("No recurring issues in this window.\n")
		return b.String()
	}

	for i, issue := range report.TopIssues {
		fmt.Fprintf(&b, "%d. **%s** (%d tickets, %.2f%%)\n", i+1, issue.Summary, issue.Count, issue.RatioInFiltered)
		if issue.Platform != "" {
			fmt.Fprintf(&b, "   - Platforms: %s\n", issue.Platform)
		}
		links := issue.TicketLinks
		if len(links) > maxLinksPerIssue {
			links = links[:maxLinksPerIssue]
		}
		for _, link := range links {
			fmt.Fprintf(&b, "   - %s\n", link)
		}
		if more := len(issue.TicketLinks) - len(links); more > 0 {
			fmt.Fprintf(&b, "   - and %d more\n", more)
		}
	}
	return b.String()
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
