package domain

type TopIssueEntry struct {
	Summary         string   `json:"summary"`
	Count           int      `json:"count"`
	Platform        string   `json:"platform"`
	RatioInFiltered float64  `json:"ratioInFiltered"`
	TicketLinks     []string `json:"ticketLinks"`
	RecordIDs       []string `json:"recordIds"`
}

type PieChart struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// ReportFilters echoes the query a report was built for. Dates are
// YYYY-MM-DD or nil when the bound was not set.
type ReportFilters struct {
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	ProductLine string  `json:"productLine"`
	MinCount    int     `json:"minCount"`
}

type Report struct {
	Filters             ReportFilters   `json:"filters"`
	TotalTicketsInScope int             `json:"totalTicketsInScope"`
	TopIssues           []TopIssueEntry `json:"topIssues"`
	PieChart            PieChart        `json:"pieChart"`
}
