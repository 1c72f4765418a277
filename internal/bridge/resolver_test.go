package bridge

import (
	"context"
	"errors"
	"testing"

	"jirabridge/pkg/logx"
)

type fakeDirectory struct {
	accounts map[string]*Account
	err      error
	calls    []string
}

func (d *fakeDirectory) FindUserByUsername(_ context.Context, username string) (*Account, error) {
	d.calls = append(d.calls, username)
	if d.err != nil {
		return nil, d.err
	}
	return d.accounts[username], nil
}

func TestResolveAllMappingPrecedence(t *testing.T) {
	t.Parallel()
	dir := &fakeDirectory{accounts: map[string]*Account{
		"john.doe": {Username: "john.doe", ChatID: 1},
	}}
	st := Settings{
		Mapping:      map[string]string{"jdoe": "john.doe"},
		MappingField: "name",
	}

	got, warns := ResolveAll(context.Background(), []UserRef{{"name": "jdoe"}}, st, dir, logx.Nop())
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if len(got) != 1 || !got[0].OK() {
		t.Fatalf("resolution failed: %+v", got)
	}
	if got[0].Username != "john.doe" {
		t.Fatalf("Username = %q, want mapped john.doe", got[0].Username)
	}
}

func TestResolveAllFallbackThrough(t *testing.T) {
	t.Parallel()
	dir := &fakeDirectory{accounts: map[string]*Account{
		"asmith": {Username: "asmith", ChatID: 2},
	}}
	st := Settings{Mapping: map[string]string{}, MappingField: "name"}

	got, _ := ResolveAll(context.Background(), []UserRef{{"name": "asmith"}}, st, dir, logx.Nop())
	if len(got) != 1 || got[0].Username != "asmith" {
		t.Fatalf("want fallback-through to asmith, got %+v", got)
	}
}

func TestResolveAllFailureTags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ref  UserRef
		dir  *fakeDirectory
		tag  string
	}{
		{
			name: "no identifier",
			ref:  UserRef{"displayName": "Ghost"},
			dir:  &fakeDirectory{},
			tag:  TagNoIdentifier,
		},
		{
			name: "not found",
			ref:  UserRef{"name": "nobody"},
			dir:  &fakeDirectory{accounts: map[string]*Account{}},
			tag:  TagNotFound,
		},
		{
			name: "lookup error",
			ref:  UserRef{"name": "flaky"},
			dir:  &fakeDirectory{err: errors.New("directory down")},
			tag:  TagLookupError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			st := Settings{Mapping: map[string]string{}, MappingField: "name"}
			got, warns := ResolveAll(context.Background(), []UserRef{tt.ref}, st, tt.dir, logx.Nop())
			if len(got) != 1 {
				t.Fatalf("len = %d, want 1", len(got))
			}
			if got[0].Tag != tt.tag {
				t.Fatalf("Tag = %q, want %q", got[0].Tag, tt.tag)
			}
			if tt.tag == TagLookupError && len(warns) == 0 {
				t.Fatal("lookup error should surface a warning")
			}
			if tt.tag == TagNoIdentifier && len(tt.dir.calls) != 0 {
				t.Fatal("no-identifier participant must not hit the directory")
			}
		})
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	t.Parallel()
	dir := &fakeDirectory{accounts: map[string]*Account{
		"a": {Username: "a"},
		"c": {Username: "c"},
	}}
	st := Settings{Mapping: map[string]string{}, MappingField: "name"}
	refs := []UserRef{{"name": "a"}, {"name": "b"}, {"name": "c"}}

	got, _ := ResolveAll(context.Background(), refs, st, dir, logx.Nop())
	if len(got) != len(refs) {
		t.Fatalf("len = %d, want %d", len(got), len(refs))
	}
	for i, r := range got {
		if r.Username != refs[i].Attr("name") {
			t.Fatalf("order broken at %d: %q", i, r.Username)
		}
	}
	if got[1].Tag != TagNotFound {
		t.Fatalf("middle Tag = %q, want %q", got[1].Tag, TagNotFound)
	}
}

func TestParseSettingsDefaultsAndRecovery(t *testing.T) {
	t.Parallel()
	st, warns := ParseSettings("", "", "", false, "")
	if st.MappingField != "name" {
		t.Fatalf("MappingField default = %q", st.MappingField)
	}
	if st.DefaultIconURL != DefaultIconURL {
		t.Fatalf("DefaultIconURL default = %q", st.DefaultIconURL)
	}
	if len(st.Mapping) != 0 || len(st.CustomFields) != 0 || len(warns) != 0 {
		t.Fatalf("unexpected defaults: %+v warns=%v", st, warns)
	}

	st, warns = ParseSettings("{not json", "name", " customfield_1 ,, customfield_2 ", true, "")
	if len(warns) != 1 {
		t.Fatalf("warns = %v, want one recovery warning", warns)
	}
	if len(st.Mapping) != 0 {
		t.Fatal("malformed mapping must recover to empty table")
	}
	if len(st.CustomFields) != 2 || st.CustomFields[0] != "customfield_1" || st.CustomFields[1] != "customfield_2" {
		t.Fatalf("CustomFields = %v", st.CustomFields)
	}
	if !st.SkipInternalComments {
		t.Fatal("SkipInternalComments lost")
	}
}
