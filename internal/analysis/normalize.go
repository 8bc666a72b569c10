package analysis

import (
	"strings"
	"time"

	"issueboard/internal/domain"
)

// UnknownPlatform stands in for tickets with no platform field.
const UnknownPlatform = "unknown"

const issueTextSeparator = " | "

// NormalizeRecord resolves the canonical concepts of one record. It never
// fails: missing or malformed fields degrade to empty values.
func NormalizeRecord(rec domain.RawRecord, loc *time.Location) domain.NormalizedTicket {
	fields := rec.Fields

	t := domain.NormalizedTicket{
		RecordID:    rec.RecordID,
		Fields:      fields,
		ProductLine: GetField(fields, ProductLineKeys),
		Platform:    GetField(fields, PlatformKeys),
		TicketLink:  GetField(fields, TicketLinkKeys),
	}

	if raw, ok := LookupField(fields, ReceivedDateKeys); ok {
		t.ReceivedDateRaw = domain.CoerceText(raw)
		t.ReceivedAt, t.HasReceivedDate = ParseDate(raw, loc)
	}
	if t.Platform == "" {
		t.Platform = UnknownPlatform
	}
	if t.TicketLink == "" {
		t.TicketLink = "record:" + rec.RecordID
	}
	t.IssueText = issueText(fields)
	return t
}

func issueText(fields domain.Fields) string {
	var parts []string
	for _, keys := range [][]string{DescriptionKeys, ProgressKeys, ConclusionKeys} {
		if s := GetField(fields, keys); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return fields.Dump()
	}
	return strings.Join(parts, issueTextSeparator)
}
