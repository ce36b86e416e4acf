package field

import "sort"

// Group is a display group of fields.
type Group struct {
	Code   string   `json:"code"`
	Label  string   `json:"label"`
	Fields []*Field `json:"fields"`
}

// Sort orders fields by group label, then order index. The sort is stable,
// so fields that tie keep their incoming (insertion) order.
func Sort(fields []*Field) {
	sort.SliceStable(fields, func(i, j int) bool {
		a, b := fields[i], fields[j]
		if a.GroupLabel != b.GroupLabel {
			return a.GroupLabel < b.GroupLabel
		}
		return a.OrderIndex < b.OrderIndex
	})
}

// GroupFields sorts fields with Sort and splits them into groups keyed by
// group code. Groups appear in the order of their first field.
func GroupFields(fields []*Field) []Group {
	sorted := append([]*Field(nil), fields...)
	Sort(sorted)

	var groups []Group
	index := make(map[string]int)
	for _, f := range sorted {
		i, ok := index[f.GroupCode]
		if !ok {
			i = len(groups)
			index[f.GroupCode] = i
			groups = append(groups, Group{Code: f.GroupCode, Label: f.GroupLabel})
		}
		groups[i].Fields = append(groups[i].Fields, f)
	}
	return groups
}

// Codes returns the field codes in slice order.
func Codes(fields []*Field) []string {
	codes := make([]string, len(fields))
	for i, f := range fields {
		codes[i] = f.Code
	}
	return codes
}
