package scanner

import (
	"testing"
)

func assertRead(t *testing.T, s *Scanner, xb byte) {
	t.Helper()
	if b := s.Read(); b != xb {
		t.Fatalf("Read: expected b = %q, got %q", xb, b)
	}
}

func assertPeek(t *testing.T, s *Scanner, xb byte) {
	t.Helper()
	if b := s.Peek(); b != xb {
		t.Fatalf("Peek: expected b = %q, got %q", xb, b)
	}
}

func assertOffset(t *testing.T, s *Scanner, off int) {
	t.Helper()
	if got := s.Offset(); got != off {
		t.Fatalf("Offset: expected %d got %d", off, got)
	}
}

func assertEndToken(t *testing.T, s *Scanner, tokStr string) {
	t.Helper()
	if tok := s.EndToken(); string(tok) != tokStr {
		t.Fatalf("EndToken: expected %q got %q", tokStr, tok)
	}
}

func TestSimple(t *testing.T) {
	scanner := New([]byte("bonjour"))
	assertRead(t, scanner, 'b')
	assertRead(t, scanner, 'o')
	assertOffset(t, scanner, 2)
	assertPeek(t, scanner, 'n')
	assertOffset(t, scanner, 2)
	assertRead(t, scanner, 'n')
	scanner.Back()
	assertOffset(t, scanner, 2)
	assertRead(t, scanner, 'n')
}

func TestToken(t *testing.T) {
	scanner := New([]byte(`  "hello" ,`))
	assertPeek(t, scanner, ' ')
	if b := scanner.SkipSpaceAndPeek(); b != '"' {
		t.Fatalf("SkipSpaceAndPeek: expected '\"', got %q", b)
	}
	scanner.StartToken()
	for i := 0; i < 7; i++ {
		scanner.Read()
	}
	assertEndToken(t, scanner, `"hello"`)
	if b := scanner.SkipSpaceAndPeek(); b != ',' {
		t.Fatalf("SkipSpaceAndPeek: expected ',', got %q", b)
	}
}

func TestEOF(t *testing.T) {
	scanner := New([]byte("a"))
	assertRead(t, scanner, 'a')
	assertRead(t, scanner, EOF)
	scanner.Back()
	assertOffset(t, scanner, 1)
	assertPeek(t, scanner, EOF)
	if b := scanner.SkipSpaceAndPeek(); b != EOF {
		t.Fatalf("SkipSpaceAndPeek: expected EOF, got %q", b)
	}
}

func TestBackTwicePanics(t *testing.T) {
	scanner := New([]byte("ab"))
	scanner.Read()
	scanner.Back()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	scanner.Back()
}

func TestTokenDoesNotShareCapacity(t *testing.T) {
	buf := []byte("abcd")
	scanner := New(buf)
	scanner.StartToken()
	scanner.Read()
	scanner.Read()
	tok := scanner.EndToken()
	tok = append(tok, 'X')
	if string(buf) != "abcd" {
		t.Fatalf("appending to a token modified the input: %q", buf)
	}
	if string(tok) != "abX" {
		t.Fatalf("unexpected token %q", tok)
	}
}
