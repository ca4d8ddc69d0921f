package disk

import "errors"

var (
	ErrFileExists       = errors.New("database file already exists")
	ErrFileNotFound     = errors.New("database file not found")
	ErrFileNotOpen      = errors.New("database file not open")
	ErrIO               = errors.New("i/o error")
	ErrBadFileHeader    = errors.New("invalid database file header")
	ErrPageSizeMismatch = errors.New("file page size does not match configured page size")
	ErrPageOutOfBounds  = errors.New("page number out of bounds")
)
