package query

import "testing"

func TestKeyString(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{NewKey(), "[]"},
		{NewKey("comments"), `["comments"]`},
		{NewKey("comments", "d1"), `["comments","d1"]`},
		{NewKey("a,b"), `["a,b"]`},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("%v.String() = %s, want %s", []string(tt.key), got, tt.want)
		}
	}

	// Parts containing separators must not collide.
	if NewKey("a,b").String() == NewKey("a", "b").String() {
		t.Error("keys with different parts encode identically")
	}
}

func TestKeyHasPrefix(t *testing.T) {
	k := NewKey("comments", "d1")

	tests := []struct {
		prefix Key
		want   bool
	}{
		{NewKey(), true},
		{NewKey("comments"), true},
		{NewKey("comments", "d1"), true},
		{NewKey("comments", "d2"), false},
		{NewKey("comments", "d1", "x"), false},
		{NewKey("users"), false},
	}
	for _, tt := range tests {
		if got := k.HasPrefix(tt.prefix); got != tt.want {
			t.Errorf("HasPrefix(%s) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}
