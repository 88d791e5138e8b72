package version

import (
	"testing"
)

func TestCompareOrdering(t *testing.T) {
	ordered := []string{
		"1.0.dev0",
		"1.0.0a1",
		"1.0.0a1.post1.dev0",
		"1.0.0a1.post1",
		"1.0.0b1.dev0",
		"1.0.0b1",
		"1.0.0rc1",
		"1.0.0",
		"1.0.0.post0",
		"1.0.0.post1.dev0",
		"1.0.0.post1",
		"1.0.1",
		"1!1.0.0",
	}
	vs := make([]Version, len(ordered))
	for i, s := range ordered {
		v, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		vs[i] = v
	}
	for i := 0; i < len(vs)-1; i++ {
		if !vs[i].Less(vs[i+1]) {
			t.Errorf("expected %v < %v", vs[i], vs[i+1])
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "abc", "1.0-", "1..0"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestLocalVersionOrdering(t *testing.T) {
	base := MustParse("1.0.0")
	local := MustParse("1.0.0+abc")
	if !base.Less(local) {
		t.Errorf("expected version without local segment to sort before one with")
	}
}

func TestSpecifierMatch(t *testing.T) {
	cases := []struct {
		spec  string
		ver   string
		match bool
	}{
		{">=1.0,<2.0", "1.5.0", true},
		{">=1.0,<2.0", "2.0.0", false},
		{"==1.2.*", "1.2.9", true},
		{"==1.2.*", "1.3.0", false},
		{"!=1.2.*", "1.3.0", true},
		{"~=2.2", "2.3.0", true},
		{"~=2.2", "3.0.0", false},
		{"~=1.4.5", "1.4.9", true},
		{"~=1.4.5", "1.5.0", false},
		{">1.0", "1.0.0rc1", false},
		{">=1.0", "1.0.0rc1", false},
	}
	for _, c := range cases {
		set, err := ParseSpecifierSet(c.spec)
		if err != nil {
			t.Fatalf("ParseSpecifierSet(%q): %v", c.spec, err)
		}
		v := MustParse(c.ver)
		if got := set.Match(v); got != c.match {
			t.Errorf("SpecifierSet(%q).Match(%q) = %v, want %v", c.spec, c.ver, got, c.match)
		}
	}
}

func TestIsOverlapping(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{">=1.0,<2.0", ">=1.5,<3.0", true},
		{">=1.0,<2.0", ">=2.0", false},
		{">=1.0,<2.0", ">=2.0,<3.0", false},
		{"==1.5.0", ">=1.0,<2.0", true},
		{">2.0", "<=2.0", false},
		{">=2.0", "<=2.0", true},
	}
	for _, c := range cases {
		a, err := ParseSpecifierSet(c.a)
		if err != nil {
			t.Fatal(err)
		}
		b, err := ParseSpecifierSet(c.b)
		if err != nil {
			t.Fatal(err)
		}
		if got := IsOverlapping(a, b); got != c.want {
			t.Errorf("IsOverlapping(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
		if got := IsOverlapping(b, a); got != c.want {
			t.Errorf("IsOverlapping(%q, %q) (commuted) = %v, want %v", c.b, c.a, got, c.want)
		}
	}
}
