package preflight

// Plan selects which advisory checks run before a sync.
type Plan struct {
	SourceAccessible bool
	TargetWritable   bool
	PathNesting      bool
}
