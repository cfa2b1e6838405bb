package engine

// Separator is inserted between the end of a scrolled text and its restart
const Separator = "    "

const (
	// DefaultVisibleChars is the marquee window width
	DefaultVisibleChars = 8
	// DefaultScrollSpeed is the offset advance per tick
	DefaultScrollSpeed = 2
)

// ScrollState is the text and marquee offset of one displayed field.
// Invariant: 0 <= Offset < max(1, rune length of Text).
type ScrollState struct {
	Text   string
	Offset int
}

// Scroll advances offset by step modulo the text length and renders the window at the new
// offset, which it also returns. Texts no longer than visible are returned unchanged with
// offset 0. Longer texts yield exactly visible runes taken from the ring text+Separator+text.
// A step of 0 renders the window at offset itself. Lengths are counted in runes.
func Scroll(text string, offset, visible, step int) (string, int) {
	runes := []rune(text)
	n := len(runes)
	if visible <= 0 || n <= visible {
		return text, 0
	}

	next := normalize(normalize(offset, n)+step, n)

	ring := make([]rune, 0, 2*n+len(Separator))
	ring = append(ring, runes...)
	ring = append(ring, []rune(Separator)...)
	ring = append(ring, runes...)

	return string(ring[next : next+visible]), next
}

// Advance moves the offset forward in place and renders the window there
func (s *ScrollState) Advance(visible, step int) string {
	window, next := Scroll(s.Text, s.Offset, visible, step)
	s.Offset = next
	return window
}

// Peek renders the state's window without moving the offset
func (s ScrollState) Peek(visible int) string {
	window, _ := Scroll(s.Text, s.Offset, visible, 0)
	return window
}

// Set replaces the text, resetting the offset only when the text actually changed
func (s *ScrollState) Set(text string) {
	if s.Text == text {
		return
	}
	s.Text = text
	s.Offset = 0
}

// Reset replaces the text and always rewinds the offset
func (s *ScrollState) Reset(text string) {
	s.Text = text
	s.Offset = 0
}

func normalize(offset, n int) int {
	if n <= 0 {
		return 0
	}
	offset %= n
	if offset < 0 {
		offset += n
	}
	return offset
}
