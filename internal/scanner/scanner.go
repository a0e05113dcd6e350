package scanner

// Scanner reads bytes from a single in-memory line.  It tracks the current
// offset and can record the bytes of a token as they are read, so that the
// decoder can keep the literal text of scalars.
type Scanner struct {
	buf []byte

	// Current position in buf
	// 0 <= currentIndex <= len(buf)
	currentIndex int

	// Position in buf of the currently recorded token.
	// -1 means not recording a token
	tokenStartIndex int

	// Set by Read and cleared by Back, so that Back can only undo one Read.
	canBack bool

	// Tracks how many EOFs have been read.  This is required to make
	// Back() work after an EOF has been read.
	eofCount int
}

// New returns a scanner over b.  The scanner does not copy b, and tokens
// returned by EndToken alias it.
func New(b []byte) *Scanner {
	return &Scanner{
		buf:             b,
		tokenStartIndex: -1,
	}
}

// Offset returns the number of bytes consumed so far.
func (s *Scanner) Offset() int {
	return s.currentIndex
}

// Read consumes and returns the next byte, or EOF at the end of input.
func (s *Scanner) Read() byte {
	s.canBack = true
	if s.currentIndex < len(s.buf) {
		b := s.buf[s.currentIndex]
		s.currentIndex++
		return b
	}
	s.eofCount++
	return EOF
}

// Back undoes the last Read.
func (s *Scanner) Back() {
	if !s.canBack {
		panic("cannot go back twice")
	}
	s.canBack = false
	if s.eofCount > 0 {
		s.eofCount--
		return
	}
	if s.currentIndex <= 0 || s.currentIndex <= s.tokenStartIndex {
		panic("cannot go back from start")
	}
	s.currentIndex--
}

// Peek returns the next byte without consuming it.
func (s *Scanner) Peek() byte {
	if s.currentIndex < len(s.buf) {
		return s.buf[s.currentIndex]
	}
	return EOF
}

// StartToken starts recording bytes from the current position.
func (s *Scanner) StartToken() {
	if s.tokenStartIndex >= 0 {
		panic("already in record mode")
	}
	s.tokenStartIndex = s.currentIndex
}

// EndToken stops recording and returns the bytes read since StartToken.
func (s *Scanner) EndToken() []byte {
	if s.tokenStartIndex < 0 {
		panic("not in record mode")
	}
	tok := s.buf[s.tokenStartIndex:s.currentIndex:s.currentIndex]
	s.tokenStartIndex = -1
	return tok
}

// AbortToken stops recording without returning anything.  It is a no-op if
// no token is being recorded.
func (s *Scanner) AbortToken() {
	s.tokenStartIndex = -1
}

// SkipSpaceAndPeek skips JSON whitespace and returns the next byte without
// consuming it.
func (s *Scanner) SkipSpaceAndPeek() byte {
	for s.currentIndex < len(s.buf) {
		switch b := s.buf[s.currentIndex]; b {
		case ' ', '\t', '\r', '\n':
			s.currentIndex++
		default:
			return b
		}
	}
	return EOF
}

// 0xFF is a byte that should not appear in a UTF-8 encoded stream of bytes.
const EOF byte = 0xFF
