package domain

// LimitRow is one exposure ceiling with its running reservation, both in
// token minor units. A zero Max on a per-slot row means unlimited (the
// global cap still applies); a zero Max on the global row means the book
// is unfunded and admits nothing.
type LimitRow struct {
	Max     int64 `json:"max"`
	Current int64 `json:"current"`
}

// ExposureSnapshot is the full ledger state: the global cap plus the
// seven per-outcome rows.
type ExposureSnapshot struct {
	Global LimitRow                  `json:"global"`
	Slots  map[ExposureSlot]LimitRow `json:"slots"`
}

// Rows flattens the snapshot into persistable rows keyed by slot, with
// the global cap under SlotGlobal.
func (s ExposureSnapshot) Rows() map[ExposureSlot]LimitRow {
	rows := make(map[ExposureSlot]LimitRow, len(s.Slots)+1)
	for slot, row := range s.Slots {
		rows[slot] = row
	}
	rows[SlotGlobal] = s.Global
	return rows
}
