package regexkit

import "testing"

func TestFindAllAndCapture(t *testing.T) {
	re, err := Compile(`(?P<k>foo)=1`, false)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	matches := re.FindAll("foo=1 end")
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	m := matches[0]
	if m.Start != 0 || m.End != 5 {
		t.Errorf("match span = [%d,%d), want [0,5)", m.Start, m.End)
	}
	g, err := m.ResolveGroup("k")
	if err != nil {
		t.Fatalf("ResolveGroup(k): %v", err)
	}
	if g.Start != 0 || g.End != 3 {
		t.Errorf("group k span = [%d,%d), want [0,3)", g.Start, g.End)
	}
	g0, err := m.ResolveGroup("0")
	if err != nil || g0.Start != 0 || g0.End != 5 {
		t.Errorf("group 0 span = [%d,%d), %v, want [0,5)", g0.Start, g0.End, err)
	}
}

func TestMultilineAnchors(t *testing.T) {
	re, err := Compile(`^local y`, false)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	matches := re.FindAll("local x = 1\nlocal y = 2\n")
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	if matches[0].Start != 12 {
		t.Errorf("match start = %d, want 12", matches[0].Start)
	}
}

func TestVerboseMode(t *testing.T) {
	re, err := Compile(`
		foo   # match foo
		=
		1
	`, true)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if matches := re.FindAll("foo=1"); len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
}

func TestInterpolate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		resolve  func(string) (string, bool)
		want     string
		wantErr  bool
	}{
		{
			name:     "numbered_and_named",
			template: "bar_$k and $1",
			resolve: func(ref string) (string, bool) {
				switch ref {
				case "k":
					return "foo", true
				case "1":
					return "whole", true
				}
				return "", false
			},
			want: "bar_foo and whole",
		},
		{
			name:     "escaped_dollar",
			template: "cost: $$5",
			resolve:  func(string) (string, bool) { return "", false },
			want:     "cost: $5",
		},
		{
			name:     "unresolved",
			template: "$missing",
			resolve:  func(string) (string, bool) { return "", false },
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Interpolate(tt.template, tt.resolve)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Interpolate() = %q, want %q", got, tt.want)
			}
		})
	}
}
