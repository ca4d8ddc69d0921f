package heapfile

import "errors"

var (
	// ErrFileExists is returned by Create when a heap file of the same
	// name can already be opened.
	ErrFileExists = errors.New("heap file already exists")

	// ErrBadScanParam rejects malformed predicate setup in StartScan.
	ErrBadScanParam = errors.New("bad scan parameter")

	// ErrRecordTooLarge rejects records that can never fit on a page.
	ErrRecordTooLarge = errors.New("record larger than maximum page payload")

	// ErrEndOfFile signals normal scan exhaustion. It is a control
	// signal, not a failure.
	ErrEndOfFile = errors.New("end of heap file")

	// ErrNoCurrentRecord is returned when a cursor operation needs a
	// positioned record and the scan has none.
	ErrNoCurrentRecord = errors.New("scan has no current record")

	// ErrBadRID rejects record identifiers that do not address a data
	// page of the file.
	ErrBadRID = errors.New("invalid record identifier")
)
