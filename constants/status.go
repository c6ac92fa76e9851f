package constants

// RecordStatus describes how an OCR line ended up in the tally.
type RecordStatus string

// Stable values (stored verbatim in the history table).
const (
	RecordMatched  RecordStatus = "MATCHED"  // resolved to an existing key
	RecordVerbatim RecordStatus = "VERBATIM" // stored as normalized text
	RecordSkipped  RecordStatus = "SKIPPED"  // no usable text
)
