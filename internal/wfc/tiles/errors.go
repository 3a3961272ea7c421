package tiles

import "errors"

var (
	// ErrUnknownGroup indicates no tile carries the requested group name.
	ErrUnknownGroup = errors.New("tiles: unknown group")
	// ErrOutOfRange indicates a tile id or direction outside the model.
	ErrOutOfRange = errors.New("tiles: tile id out of range")
)

// DataError reports an unusable example corpus. It is fatal at startup.
type DataError struct {
	Source string
	Err    error
}

func (e *DataError) Error() string {
	if e.Source == "" {
		return "tiles: bad example data: " + e.Err.Error()
	}
	return "tiles: bad example data (" + e.Source + "): " + e.Err.Error()
}

func (e *DataError) Unwrap() error { return e.Err }
