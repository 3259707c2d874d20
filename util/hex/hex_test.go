package hex

import "testing"

func TestWord32(t *testing.T) {
	cases := []struct {
		in   uint32
		want string
	}{
		{0, "0x00000000"},
		{0x1000, "0x00001000"},
		{0xdeadbeef, "0xDEADBEEF"},
	}
	for _, c := range cases {
		if got := Word32(c.in); got != c.want {
			t.Errorf("Word32(0x%x) = %q, want %q", c.in, got, c.want)
		}
	}
}
