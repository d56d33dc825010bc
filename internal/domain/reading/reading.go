package reading

import "fmt"

// Kind is the numeric shape of a token.
type Kind int

const (
	Invalid Kind = iota
	Integer
	Float
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Float:
		return "float"
	default:
		return "invalid"
	}
}

// Reading is one classified token.
type Reading struct {
	Token string
	Kind  Kind
	Value float64
}

func (r Reading) String() string {
	return fmt.Sprintf("%s(%s)", r.Kind, r.Token)
}

// Item is a queue element: either a reading or the end-of-stream marker.
type Item struct {
	reading Reading
	end     bool
}

// Of wraps a reading for enqueueing.
func Of(r Reading) Item {
	return Item{reading: r}
}

// EndOfStream returns the termination marker.
func EndOfStream() Item {
	return Item{end: true}
}

// IsEnd reports whether the item is the termination marker.
func (i Item) IsEnd() bool {
	return i.end
}

// Reading returns the wrapped reading. It is the zero Reading for the marker.
func (i Item) Reading() Reading {
	return i.reading
}
