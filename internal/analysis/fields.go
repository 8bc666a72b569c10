package analysis

import (
	"strings"

	"issueboard/internal/domain"
)

// Alias lists per canonical concept, checked in order.
var (
	ReceivedDateKeys = []string{"问题接收日期", "接收日期", "日期", "创建时间", "createdAt", "CreatedAt"}
	ProductLineKeys  = []string{"产品线", "productLine", "产品", "业务线"}
	PlatformKeys     = []string{"所属端", "端", "平台", "app端"}
	TicketLinkKeys   = []string{"工单链接", "链接", "ticketLink", "url"}
	DescriptionKeys  = []string{"问题描述", "描述", "summary", "标题"}
	ProgressKeys     = []string{"处理进展", "进展", "处理状态"}
	ConclusionKeys   = []string{"问题结论", "结论", "原因"}
)

// GetField resolves the first candidate key present in fields to its text.
func GetField(fields domain.Fields, candidates []string) string {
	v, ok := LookupField(fields, candidates)
	if !ok {
		return ""
	}
	return domain.CoerceText(v)
}

// LookupField walks candidates with exact keys first, then, only if none of
// them matched, walks them again against a lowercased view of all keys. A
// key counts as a match when its value renders to non-empty text.
func LookupField(fields domain.Fields, candidates []string) (domain.Value, bool) {
	for _, key := range candidates {
		if v, ok := fields.Get(key); ok && domain.CoerceText(v) != "" {
			return v, true
		}
	}

	folded := make(map[string]domain.Value, len(fields))
	for _, f := range fields {
		folded[strings.ToLower(f.Key)] = f.Value
	}
	for _, key := range candidates {
		if v, ok := folded[strings.ToLower(key)]; ok && domain.CoerceText(v) != "" {
			return v, true
		}
	}
	return domain.Value{}, false
}
