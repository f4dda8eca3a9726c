package sensitivity

// Learner nudges a zone coefficient toward the brightness the user chose.
type Learner struct {
	// Coefficient scales the brightness error into a coefficient change.
	Coefficient float64
}

// Adjustment records one learning decision.
type Adjustment struct {
	Zone   Zone
	Raw    float64
	Target int
	Actual int
	Error  int
	Old    float64
	New    float64
	Reset  bool
}

// Adjust compares the applied target with the actual brightness and, if
// they differ, updates the coefficient of zone in p. The zone must be the
// one the target was mapped from. It reports false when no change was
// needed.
func (l Learner) Adjust(p *Profile, zone Zone, raw float64, target, actual int) (Adjustment, bool) {
	if target == actual {
		return Adjustment{}, false
	}

	adj := Adjustment{
		Zone:   zone,
		Raw:    raw,
		Target: target,
		Actual: actual,
		Error:  target - actual,
		Old:    p.Get(zone),
	}
	adj.New, adj.Reset = Sanitize(adj.Old - float64(adj.Error)*l.Coefficient)
	p.Set(zone, adj.New)
	return adj, true
}
