package macro

// MacroError covers every fatal macro-expansion failure: an unresolved
// field, a reference to an entity outside the current alias set, or a
// cyclic expansion chain.
type MacroError struct {
	Kind   string // "field_not_found", "unknown_entity", "cyclic_expansion"
	Detail string
}

func (e *MacroError) Error() string {
	return "macro expansion error (" + e.Kind + "): " + e.Detail
}
