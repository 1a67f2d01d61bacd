package request

import (
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestParse_FieldsAndCounts(t *testing.T) {
	r := httptest.NewRequest("GET",
		"/users?fields[users]=id,%20name&fields[posts]=title&counts[users]=posts,drafts", nil)

	ctx := Parse(r)

	if got := ctx.Fields("users"); !reflect.DeepEqual(got, []string{"id", "name"}) {
		t.Errorf("Fields(users) = %v", got)
	}
	if got := ctx.Fields("posts"); !reflect.DeepEqual(got, []string{"title"}) {
		t.Errorf("Fields(posts) = %v", got)
	}
	if got := ctx.Fields("ghosts"); got != nil {
		t.Errorf("Fields(ghosts) = %v, want nil", got)
	}
	if got := ctx.Counts("users"); !reflect.DeepEqual(got, []string{"posts", "drafts"}) {
		t.Errorf("Counts(users) = %v", got)
	}
}

func TestParse_FiltersOrderLimit(t *testing.T) {
	r := httptest.NewRequest("GET",
		`/users?filters={"status":"active"}&order=name:desc,created_at&limit=25`, nil)

	ctx := Parse(r)

	if ctx.Filters() != `{"status":"active"}` {
		t.Errorf("Filters() = %q", ctx.Filters())
	}
	if ctx.Order() != "name:desc,created_at" {
		t.Errorf("Order() = %q", ctx.Order())
	}
	if ctx.Limit() == nil || *ctx.Limit() != 25 {
		t.Errorf("Limit() = %v, want 25", ctx.Limit())
	}
}

func TestParse_LimitEdgeCases(t *testing.T) {
	for _, tt := range []struct {
		url  string
		want *int
	}{
		{"/users", nil},
		{"/users?limit=abc", nil},
		{"/users?limit=-1", nil},
	} {
		ctx := Parse(httptest.NewRequest("GET", tt.url, nil))
		if ctx.Limit() != nil {
			t.Errorf("%s: Limit() = %v, want nil", tt.url, *ctx.Limit())
		}
	}

	ctx := Parse(httptest.NewRequest("GET", "/users?limit=0", nil))
	if ctx.Limit() == nil || *ctx.Limit() != 0 {
		t.Error("limit=0 should parse as zero, not nil")
	}
}

func TestParse_EmptyFieldParam(t *testing.T) {
	ctx := Parse(httptest.NewRequest("GET", "/users?fields[users]=", nil))
	if got := ctx.Fields("users"); got != nil {
		t.Errorf("empty fields param = %v, want nil", got)
	}
}
