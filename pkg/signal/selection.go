package signal

// MotionConfounds is the fixed set of rigid-body motion parameters the
// default confound selection pulls from an fMRIPrep confound table.
var MotionConfounds = []string{"X", "Y", "Z", "RotX", "RotY", "RotZ"}

// LocalCSFColumn names the ROI-specific regressor column produced by
// the local mask extraction.
func LocalCSFColumn(roi string) string {
	return roi + "_local_csf"
}

// SelectionKind enumerates the three confound-selection variants.
type SelectionKind int

const (
	// SelectDefault uses the motion parameters plus the ROI's local
	// CSF column.
	SelectDefault SelectionKind = iota
	// SelectExplicit uses exactly the caller-provided column names.
	SelectExplicit
	// SelectNone skips confound regression entirely.
	SelectNone
)

// Selection is the closed confound-selection choice, resolved once per
// call rather than inferred from runtime types.
type Selection struct {
	Kind  SelectionKind
	Names []string
}

// DefaultSelection selects motion parameters plus the local CSF column.
func DefaultSelection() Selection {
	return Selection{Kind: SelectDefault}
}

// MotionSelection selects the given motion columns plus the local CSF
// column, for studies whose confound tables name motion parameters
// differently. An empty list falls back to the standard motion set.
func MotionSelection(motion []string) Selection {
	return Selection{Kind: SelectDefault, Names: append([]string(nil), motion...)}
}

// ExplicitSelection selects exactly the given columns.
func ExplicitSelection(names ...string) Selection {
	return Selection{Kind: SelectExplicit, Names: names}
}

// NoneSelection disables confound regression.
func NoneSelection() Selection {
	return Selection{Kind: SelectNone}
}

// Resolve expands the selection into concrete column names for an ROI.
// A nil result means regression is skipped.
func (s Selection) Resolve(roi string) []string {
	switch s.Kind {
	case SelectDefault:
		motion := s.Names
		if len(motion) == 0 {
			motion = MotionConfounds
		}
		names := append([]string(nil), motion...)
		return append(names, LocalCSFColumn(roi))
	case SelectExplicit:
		return append([]string(nil), s.Names...)
	default:
		return nil
	}
}
