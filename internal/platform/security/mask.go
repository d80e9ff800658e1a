package security

import (
	"fmt"
	"strings"
)

// MaskChar replaces hidden characters.
const MaskChar = '*'

const visibleSuffix = 4

// DefaultPIIFields are masked by MaskPII when no fields are given.
var DefaultPIIFields = []string{
	"social_security_number",
	"ssn",
	"phone_number",
	"email",
	"address_line1",
	"address_line2",
}

// MaskValue hides all but the last four characters of s. Values of four
// characters or fewer are hidden entirely.
func MaskValue(s string) string {
	r := []rune(s)
	if len(r) <= visibleSuffix {
		return strings.Repeat(string(MaskChar), len(r))
	}
	return strings.Repeat(string(MaskChar), len(r)-visibleSuffix) + string(r[len(r)-visibleSuffix:])
}

// MaskPII returns a copy of record with the named fields masked for logging.
// Fields absent from the record or holding nil are left as they are.
// Non-string values are formatted before masking.
func (h *Helper) MaskPII(record map[string]any, fields ...string) map[string]any {
	if len(fields) == 0 {
		fields = DefaultPIIFields
	}

	masked := make(map[string]any, len(record))
	for k, v := range record {
		masked[k] = v
	}
	for _, f := range fields {
		v, ok := masked[f]
		if !ok || v == nil {
			continue
		}
		s, isString := v.(string)
		if !isString {
			s = fmt.Sprint(v)
		}
		masked[f] = MaskValue(s)
	}
	return masked
}
