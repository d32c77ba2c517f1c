package importer

// Limits bounds untrusted archive ingestion (spec.md §4.3, §8). Zero-value
// fields are replaced with the production defaults by WithDefaults.
type Limits struct {
	MaxArchiveBytes      int64
	MaxEntries           int
	MaxTotalUncompressed int64
	MaxEntryBytes        int64
	MaxIndexBytes        int64
	MaxCompressionRatio  int64
	MaxTermRows          int64
	RowsPerStatement     int
}

// DefaultLimits returns the production safety bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxArchiveBytes:      768 << 20,
		MaxEntries:           65536,
		MaxTotalUncompressed: 3 << 30,
		MaxEntryBytes:        512 << 20,
		MaxIndexBytes:        4 << 20,
		MaxCompressionRatio:  300,
		MaxTermRows:          8_000_000,
		RowsPerStatement:     200,
	}
}

// WithDefaults fills any zero field with the production default.
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	if l.MaxArchiveBytes == 0 {
		l.MaxArchiveBytes = def.MaxArchiveBytes
	}
	if l.MaxEntries == 0 {
		l.MaxEntries = def.MaxEntries
	}
	if l.MaxTotalUncompressed == 0 {
		l.MaxTotalUncompressed = def.MaxTotalUncompressed
	}
	if l.MaxEntryBytes == 0 {
		l.MaxEntryBytes = def.MaxEntryBytes
	}
	if l.MaxIndexBytes == 0 {
		l.MaxIndexBytes = def.MaxIndexBytes
	}
	if l.MaxCompressionRatio == 0 {
		l.MaxCompressionRatio = def.MaxCompressionRatio
	}
	if l.MaxTermRows == 0 {
		l.MaxTermRows = def.MaxTermRows
	}
	if l.RowsPerStatement == 0 {
		l.RowsPerStatement = def.RowsPerStatement
	}
	if l.RowsPerStatement > 225 {
		l.RowsPerStatement = 225
	}
	return l
}

// rowsPerStatementFor clamps cfg to the [1,225] range import.rs derives
// from the 900 bind-parameter SQLite cap divided by 4 columns per row.
func rowsPerStatementFor(cfg int) int {
	if cfg <= 0 {
		cfg = 200
	}
	if cfg > 225 {
		cfg = 225
	}
	return cfg
}
