package types

import "fmt"

// ModelLibrary identifies the backend framework the model server uses to
// load a model.
type ModelLibrary int

// The zero value is not a valid library.
const (
	OpenCLIP ModelLibrary = iota + 1
	SentenceTransformers
	Timm
)

// ModelLibraries lists every supported library.
var ModelLibraries = []ModelLibrary{OpenCLIP, SentenceTransformers, Timm}

// String returns the identifier the model server expects on the wire.
func (l ModelLibrary) String() string {
	switch l {
	case OpenCLIP:
		return "open_clip"
	case SentenceTransformers:
		return "sentence_transformers"
	case Timm:
		return "timm"
	default:
		return fmt.Sprintf("ModelLibrary(%d)", int(l))
	}
}

// Valid reports whether l is one of the supported libraries.
func (l ModelLibrary) Valid() bool {
	switch l {
	case OpenCLIP, SentenceTransformers, Timm:
		return true
	default:
		return false
	}
}

// ParseModelLibrary parses the wire identifier of a library.
func ParseModelLibrary(s string) (ModelLibrary, error) {
	for _, l := range ModelLibraries {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unsupported model library %q", s)
}

func (l ModelLibrary) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("unsupported model library %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *ModelLibrary) UnmarshalText(text []byte) error {
	parsed, err := ParseModelLibrary(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
