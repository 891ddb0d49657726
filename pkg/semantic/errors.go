package semantic

// DescriptorError covers every fatal Semantic Store failure: file missing,
// parse failure, schema violation, or invariant violation. Fatal for the
// request; always surfaced with the entity name when one applies.
type DescriptorError struct {
	Entity string
	Reason string
}

func (e *DescriptorError) Error() string {
	if e.Entity == "" {
		return "descriptor error: " + e.Reason
	}
	return "descriptor error for " + e.Entity + ": " + e.Reason
}
