package versioncompare

import "testing"

func TestIsNewer(t *testing.T) {
	type args struct {
		remote string
		local  string
	}
	tests := []struct {
		name string
		args args
		want bool
	}{
		{name: "newer remote", args: args{remote: "2.0.0", local: "1.0.0"}, want: true},
		{name: "equal", args: args{remote: "3.0.0", local: "3.0.0"}, want: false},
		{name: "older remote", args: args{remote: "1.0.0", local: "1.0.1"}, want: false},
		{name: "no local marker", args: args{remote: "2.0.0", local: Sentinel}, want: true},
		{name: "sentinel remote with real local", args: args{remote: Sentinel, local: "1.0.0"}, want: false},
		{name: "sentinel remote with sentinel local", args: args{remote: Sentinel, local: Sentinel}, want: false},
		{name: "sentinel remote with empty local", args: args{remote: Sentinel, local: ""}, want: false},
		// string ordering, multi digit components sort before single digits
		{name: "ten is older than nine", args: args{remote: "10.0.0", local: "9.0.0"}, want: false},
		{name: "nine is newer than ten", args: args{remote: "9.0.0", local: "10.0.0"}, want: true},
		{name: "opaque tokens", args: args{remote: "release-b", local: "release-a"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNewer(tt.args.remote, tt.args.local); got != tt.want {
				t.Errorf("IsNewer(%q, %q) = %v, want %v", tt.args.remote, tt.args.local, got, tt.want)
			}
			if got := (Lexicographic{}).IsNewer(tt.args.remote, tt.args.local); got != tt.want {
				t.Errorf("Lexicographic.IsNewer(%q, %q) = %v, want %v", tt.args.remote, tt.args.local, got, tt.want)
			}
		})
	}
}

func TestIsNewerIsTotal(t *testing.T) {
	versions := []string{"0.0.0", "0.0.1", "1.0.0", "1.10.0", "1.9.0", "10.0.0", "9.0.0", "a", "b"}
	for _, a := range versions {
		for _, b := range versions {
			ab := IsNewer(a, b)
			ba := IsNewer(b, a)
			if a == b && (ab || ba) {
				t.Errorf("equal versions %q reported as newer", a)
			}
			if a != b && a != Sentinel && b != Sentinel && ab == ba {
				t.Errorf("IsNewer(%q, %q) and IsNewer(%q, %q) are both %v", a, b, b, a, ab)
			}
			if IsNewer(a, b) != ab {
				t.Errorf("IsNewer(%q, %q) is not deterministic", a, b)
			}
		}
	}
}

func TestSemantic(t *testing.T) {
	type args struct {
		remote string
		local  string
	}
	tests := []struct {
		name string
		args args
		want bool
	}{
		{name: "ten is newer than nine", args: args{remote: "10.0.0", local: "9.0.0"}, want: true},
		{name: "nine is older than ten", args: args{remote: "9.0.0", local: "10.0.0"}, want: false},
		{name: "minor component", args: args{remote: "1.10.0", local: "1.9.0"}, want: true},
		{name: "equal", args: args{remote: "1.0", local: "1.0.0"}, want: false},
		{name: "sentinel remote", args: args{remote: Sentinel, local: "1.0.0"}, want: false},
		{name: "no local marker", args: args{remote: "0.1.0", local: Sentinel}, want: true},
		{name: "unparsable falls back to strings", args: args{remote: "release-b", local: "release-a"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Semantic{}).IsNewer(tt.args.remote, tt.args.local); got != tt.want {
				t.Errorf("Semantic.IsNewer(%q, %q) = %v, want %v", tt.args.remote, tt.args.local, got, tt.want)
			}
		})
	}
}

func TestForName(t *testing.T) {
	if _, ok := ForName("semver").(Semantic); !ok {
		t.Error("expected semver to select the semantic policy")
	}
	if _, ok := ForName("lexicographic").(Lexicographic); !ok {
		t.Error("expected lexicographic policy")
	}
	if _, ok := ForName("").(Lexicographic); !ok {
		t.Error("expected lexicographic to be the default")
	}
}
