package resource

import (
	"reflect"
	"testing"
)

func TestFields_SelectionPolicy(t *testing.T) {
	c := newTestCompiler()
	cs := compileFor(t, c, "users")

	tests := []struct {
		name     string
		resolver FieldResolver
		ctx      *fakeContext
		fixed    []string
		want     []string
	}{
		{
			name: "defaults when nothing requested",
			ctx:  &fakeContext{},
			want: []string{"id", "name", "email"},
		},
		{
			name: "client request wins over defaults",
			ctx:  &fakeContext{fields: map[string][]string{"users": {"id", "status"}}},
			want: []string{"id", "status"},
		},
		{
			name:     "explicit override bypasses request",
			resolver: FieldResolver{Explicit: []string{"name"}},
			ctx:      &fakeContext{fields: map[string][]string{"users": {"id", "status"}}},
			want:     []string{"name"},
		},
		{
			name:     "all flag uses every declared key",
			resolver: FieldResolver{All: true},
			ctx:      &fakeContext{},
			want:     []string{"id", "name", "email", "status", "created_at", "updated_at", "organization", "posts", "secret"},
		},
		{
			name: "all sentinel in request",
			ctx:  &fakeContext{fields: map[string][]string{"users": {AllFieldsToken}}},
			want: []string{"id", "name", "email", "status", "created_at", "updated_at", "organization", "posts", "secret"},
		},
		{
			name:     "exclusions removed, fixed appended, dedupe keeps first",
			resolver: FieldResolver{Excluded: []string{"email"}},
			ctx:      &fakeContext{fields: map[string][]string{"users": {"id", "email", "name"}}},
			fixed:    []string{"created_at", "id"},
			want:     []string{"id", "name", "created_at"},
		},
	}

	for _, tt := range tests {
		got := tt.resolver.Fields(cs, tt.ctx, tt.fixed)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: Fields() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestShouldIncludeCounts(t *testing.T) {
	c := newTestCompiler()
	cs := compileFor(t, c, "users")

	tests := []struct {
		name     string
		resolver FieldResolver
		ctx      *fakeContext
		want     bool
	}{
		{"not requested", FieldResolver{}, &fakeContext{}, false},
		{"explicitly requested", FieldResolver{}, &fakeContext{fields: map[string][]string{"users": {"id", CountsField}}}, true},
		{"all mode", FieldResolver{All: true}, &fakeContext{}, true},
		{"requested but excluded", FieldResolver{Excluded: []string{CountsField}}, &fakeContext{fields: map[string][]string{"users": {CountsField}}}, false},
		{"explicit selection includes counts", FieldResolver{Explicit: []string{CountsField}}, &fakeContext{}, true},
	}

	for _, tt := range tests {
		if got := tt.resolver.ShouldIncludeCounts(cs, tt.ctx); got != tt.want {
			t.Errorf("%s: ShouldIncludeCounts() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestShouldIncludeCounts_FromDefaults(t *testing.T) {
	c := newTestCompiler()
	cs := compileFor(t, c, "users")
	withCounts := *cs
	withCounts.DefaultFields = append([]string{CountsField}, cs.DefaultFields...)

	var f FieldResolver
	if !f.ShouldIncludeCounts(&withCounts, &fakeContext{}) {
		t.Error("counts in defaults should be in scope")
	}
}
