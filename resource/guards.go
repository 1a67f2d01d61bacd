package resource

import (
	apitoolkit "github.com/sinemacula/go-api-toolkit"
)

// PassesGuards evaluates visibility guards in order. An empty list passes,
// and nil entries pass, so guards stay optional. Evaluation short-circuits on
// the first failing guard; side effects in later guards must not be relied
// upon.
func PassesGuards(guards []apitoolkit.Guard, rec apitoolkit.Record, ctx apitoolkit.RequestContext) bool {
	for _, guard := range guards {
		if guard == nil {
			continue
		}
		if !guard(rec, ctx) {
			return false
		}
	}
	return true
}
