package fusion

import (
	"github.com/tidwall/gjson"

	"issueboard/internal/domain"
)

// ExtractRecords pulls records out of a list payload. It looks under
// data.records, then records, and yields nothing when neither is an array.
// Field order follows the payload.
func ExtractRecords(payload []byte) []domain.RawRecord {
	list := gjson.GetBytes(payload, "data.records")
	if !list.IsArray() {
		list = gjson.GetBytes(payload, "records")
	}
	if !list.IsArray() {
		return []domain.RawRecord{}
	}

	items := list.Array()
	records := make([]domain.RawRecord, 0, len(items))
	for _, item := range items {
		rec := domain.RawRecord{RecordID: item.Get("recordId").String()}
		if fields := item.Get("fields"); fields.IsObject() {
			rec.Fields = convertObject(fields)
		}
		records = append(records, rec)
	}
	return records
}

func convertObject(obj gjson.Result) domain.Fields {
	fields := domain.Fields{}
	obj.ForEach(func(key, value gjson.Result) bool {
		fields = append(fields, domain.F(key.String(), convertValue(value)))
		return true
	})
	return fields
}

func convertValue(v gjson.Result) domain.Value {
	switch v.Type {
	case gjson.String:
		return domain.String(v.String())
	case gjson.Number:
		return domain.NumberLiteral(v.Float(), v.Raw)
	case gjson.True, gjson.False:
		return domain.String(v.Raw)
	case gjson.JSON:
		if v.IsArray() {
			items := v.Array()
			list := make([]domain.Value, 0, len(items))
			for _, item := range items {
				list = append(list, convertValue(item))
			}
			return domain.List(list...)
		}
		return domain.Map(convertObject(v)...)
	default:
		return domain.Value{}
	}
}
