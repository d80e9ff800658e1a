package security

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(union|select|insert|delete|update|drop|create|alter)\b`)
	sqlCommentPattern = regexp.MustCompile(`--|#|/\*|\*/`)
)

// SanitizeInput strips HTML tags, a fixed list of SQL keywords and SQL
// comment markers from s.
//
// This is a denylist and it is not an injection defense: quotes, OR 1=1
// style predicates and encoded payloads pass through untouched. Use
// parameterized queries (db.Manager does) for anything reaching a database.
func (h *Helper) SanitizeInput(s string) string {
	out := htmlTagPattern.ReplaceAllString(s, "")
	out = sqlKeywordPattern.ReplaceAllString(out, "")
	out = sqlCommentPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
