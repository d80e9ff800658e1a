// Package runner executes the framework's test suites as go test
// invocations and records every run in a history store.
package runner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Suite is one go test invocation.
type Suite struct {
	Name string
	// Dir is checked before running; a missing directory skips the suite.
	Dir      string
	Packages []string
	Tags     []string
	// Run is passed as -run when not empty.
	Run string
}

var (
	unitSuite = Suite{Name: "unit", Dir: "internal", Packages: []string{"./internal/...", "./pkg/..."}}
	apiSuite  = Suite{Name: "api", Dir: "test/api", Packages: []string{"./test/api/..."}, Tags: []string{"api"}}
	uiSuite   = Suite{Name: "ui", Dir: "test/ui", Packages: []string{"./test/ui/..."}, Tags: []string{"ui"}}
	dbSuite   = Suite{Name: "database", Dir: "test/database", Packages: []string{"./test/database/..."}, Tags: []string{"database"}}
)

func filtered(s Suite, name, run string) Suite {
	s.Name = name
	s.Run = run
	return s
}

// Kinds maps each selectable test kind to its suites.
var Kinds = map[string][]Suite{
	"unit":     {unitSuite},
	"api":      {apiSuite},
	"ui":       {uiSuite},
	"database": {dbSuite},
	"smoke": {
		filtered(apiSuite, "api-smoke", "Smoke"),
		filtered(uiSuite, "ui-smoke", "Smoke"),
		filtered(dbSuite, "database-smoke", "Smoke"),
	},
	"regression": {
		filtered(apiSuite, "api-regression", "Regression"),
		filtered(uiSuite, "ui-regression", "Regression"),
		filtered(dbSuite, "database-regression", "Regression"),
	},
	"all": {unitSuite, apiSuite, uiSuite, dbSuite},
}

// KindNames returns the selectable kinds in sorted order.
func KindNames() []string {
	names := make([]string, 0, len(Kinds))
	for k := range Kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SuitesFor returns the suites of kind.
func SuitesFor(kind string) ([]Suite, error) {
	suites, ok := Kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown test kind %q (want one of %s)", kind, strings.Join(KindNames(), ", "))
	}
	return suites, nil
}

// tagFilter turns --tags values into a case-insensitive -run alternation
// combined with the suite's own filter.
func tagFilter(run string, tags []string) string {
	if len(tags) == 0 {
		return run
	}
	var alts []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			alts = append(alts, regexp.QuoteMeta(t))
		}
	}
	if len(alts) == 0 {
		return run
	}
	alt := strings.Join(alts, "|")
	if run == "" {
		return "(?i)(" + alt + ")"
	}
	// Both must match; RE2 has no lookahead, so try either order.
	q := regexp.QuoteMeta(run)
	return fmt.Sprintf("(?i)(%s.*(%s)|(%s).*%s)", q, alt, alt, q)
}
