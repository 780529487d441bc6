package jwt

import (
	"testing"
	"time"
)

// FuzzDecode feeds arbitrary strings to Decode. Invalid input must be
// rejected with an error and never panic.
func FuzzDecode(f *testing.F) {
	c, err := NewCodec(Config{Secret: testSecret, Issuer: "fuzz", Leeway: 30 * time.Second})
	if err != nil {
		f.Fatal(err)
	}

	valid, err := c.IssueAccess("1", "user", 5*time.Minute)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")
	f.Add(valid[:len(valid)/2])

	f.Fuzz(func(t *testing.T, input string) {
		p, err := c.Decode(input)
		if err == nil && p == nil {
			t.Fatal("nil payload without error")
		}
	})
}
