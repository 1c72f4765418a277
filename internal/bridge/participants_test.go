package bridge

import (
	"reflect"
	"testing"
)

func TestExtractParticipantsDedupFirstWins(t *testing.T) {
	t.Parallel()
	env := Envelope{
		"issue": map[string]any{
			"fields": map[string]any{
				"assignee": map[string]any{"name": "jdoe", "displayName": "John (assignee)"},
				"reporter": map[string]any{"name": "jdoe", "displayName": "John (reporter)"},
				"creator":  map[string]any{"name": "asmith"},
			},
		},
	}
	p := Parse(env)

	got := ExtractParticipants(p, env, nil)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].DisplayLabel() != "John (assignee)" {
		t.Fatalf("first occurrence lost: %q", got[0].DisplayLabel())
	}
	if got[1].Attr("name") != "asmith" {
		t.Fatalf("order broken: %q", got[1].Attr("name"))
	}

	// Running twice over the same input yields the same list.
	again := ExtractParticipants(p, env, nil)
	if !reflect.DeepEqual(got, again) {
		t.Fatal("extraction is not deterministic")
	}
}

func TestExtractParticipantsDropsKeyless(t *testing.T) {
	t.Parallel()
	env := Envelope{
		"issue": map[string]any{
			"fields": map[string]any{
				"assignee": map[string]any{"displayName": "No Identifier"},
				"reporter": map[string]any{"name": "bob"},
			},
		},
	}
	got := ExtractParticipants(Parse(env), env, nil)
	if len(got) != 1 || got[0].Attr("name") != "bob" {
		t.Fatalf("unexpected participants: %v", got)
	}
}

func TestExtractParticipantsWatchersAndActor(t *testing.T) {
	t.Parallel()
	env := Envelope{
		"user": map[string]any{"name": "actor"},
		"issue": map[string]any{
			"fields": map[string]any{
				"assignee": map[string]any{"name": "bob"},
				"watches": map[string]any{
					"watchers": []any{
						map[string]any{"name": "w1"},
						map[string]any{"name": "w2"},
					},
				},
			},
		},
	}
	got := ExtractParticipants(Parse(env), env, nil)
	names := make([]string, 0, len(got))
	for _, ref := range got {
		names = append(names, ref.Attr("name"))
	}
	want := []string{"bob", "w1", "w2", "actor"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("order = %v, want %v", names, want)
	}
}

func TestExtractParticipantsApprovalFlattening(t *testing.T) {
	t.Parallel()
	env := Envelope{
		"issue": map[string]any{
			"fields": map[string]any{
				"customfield_10100": []any{
					map[string]any{
						"approvers": []any{
							map[string]any{"approver": map[string]any{"accountId": "a1"}},
						},
					},
				},
			},
		},
	}
	got := ExtractParticipants(Parse(env), env, []string{"customfield_10100"})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Attr("accountId") != "a1" {
		t.Fatalf("approver not flattened: %v", got[0])
	}
}

func TestExtractParticipantsCustomFieldShapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{
			name:  "plain user",
			value: map[string]any{"name": "u1"},
			want:  []string{"u1"},
		},
		{
			name: "user list",
			value: []any{
				map[string]any{"name": "u1"},
				map[string]any{"name": "u2"},
			},
			want: []string{"u1", "u2"},
		},
		{
			name: "single approval object",
			value: map[string]any{
				"approvers": []any{
					map[string]any{"approver": map[string]any{"name": "ap1"}},
				},
			},
			want: []string{"ap1"},
		},
		{name: "primitive", value: "nonsense", want: nil},
		{name: "nil", value: nil, want: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			env := Envelope{
				"issue": map[string]any{
					"fields": map[string]any{"customfield_x": tt.value},
				},
			}
			got := ExtractParticipants(Parse(env), env, []string{"customfield_x"})
			names := make([]string, 0, len(got))
			for _, ref := range got {
				names = append(names, ref.Attr("name"))
			}
			if len(names) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(names, tt.want) {
				t.Fatalf("names = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestIdentityKeyPrecedence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ref  UserRef
		want string
	}{
		{"accountId first", UserRef{"accountId": "a", "emailAddress": "e", "name": "n"}, "a"},
		{"email second", UserRef{"emailAddress": "e", "name": "n"}, "e"},
		{"name last", UserRef{"name": "n"}, "n"},
		{"empty", UserRef{}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.IdentityKey(); got != tt.want {
				t.Fatalf("IdentityKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAvatarURLShapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ref  UserRef
		want string
	}{
		{"sized map", UserRef{"avatarUrls": map[string]any{"48x48": "big", "16x16": "small"}}, "big"},
		{"sized map fallback", UserRef{"avatarUrls": map[string]any{"16x16": "small"}}, "small"},
		{"flat", UserRef{"avatarUrl": "flat"}, "flat"},
		{"nested", UserRef{"avatar": map[string]any{"url": "nested"}}, "nested"},
		{"none", UserRef{"name": "x"}, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.AvatarURL(); got != tt.want {
				t.Fatalf("AvatarURL = %q, want %q", got, tt.want)
			}
		})
	}
}
