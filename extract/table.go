package extract

// Property keys understood by the two dialect tables.
const (
	Atoms                     = "atoms"
	Energy                    = "energy"
	Forces                    = "forces"
	DipoleMoment              = "dipole_moment"
	Polarizability            = "polarizability"
	Shielding                 = "shielding"
	Hessian                   = "hessian"
	DipoleDerivatives         = "dipole_derivatives"
	PolarizabilityDerivatives = "polarizability_derivatives"
)

const (
	// Bohr is the Bohr radius in Angstrom.
	// https://physics.nist.gov/cgi-bin/cuu/Value?bohrrada0
	Bohr = 0.5291_772_109_03
	// fine-structure constant
	alpha = 7.297_352_5693e-3
	// PPMToAU converts shielding tensors from ppm to atomic units.
	PPMToAU = 1.0 / (alpha * alpha * 1e6)
)

// Entry is the immutable configuration for one extractable property:
// its window markers and the rules that turn the window into arrays.
// A nil Stop marks a single-line property. The rule arity is fixed
// here: one rule yields Output.Single, several yield Output.Multi.
type Entry struct {
	Start string
	Stop  []string
	Rules []Rule
}

// Table is one dialect: a closed mapping from property key to entry.
// Dialects differ only in data; the engine is dialect-agnostic.
type Table map[string]Entry

// MainTable is the primary-result dialect: prose section headings in
// the main output file. Geometry converts to atomic units, forces flip
// the sign of the printed gradient, and shielding converts from ppm.
var MainTable = Table{
	Atoms: {
		Start: "CARTESIAN COORDINATES (ANGSTROEM)",
		Stop:  []string{"CARTESIAN COORDINATES (A.U.)"},
		Rules: []Rule{
			{Pos: 0, Text: true},
			{Pos: 1, End: 4, Unit: 1.0 / Bohr},
		},
	},
	Energy: {
		Start: "FINAL SINGLE POINT ENERGY",
		Rules: []Rule{{Pos: 4}},
	},
	Forces: {
		Start: "CARTESIAN GRADIENT",
		Stop:  []string{"Difference to translation invariance"},
		Rules: []Rule{{Pos: 3, End: 6, Unit: -1.0}},
	},
	DipoleMoment: {
		Start: "Total Dipole Moment",
		Rules: []Rule{{Pos: 4, End: 7}},
	},
	Polarizability: {
		Start: "The raw cartesian tensor (atomic units):",
		Stop:  []string{"diagonalized tensor:"},
		Rules: []Rule{{Pos: 0, End: 4}},
	},
	Shielding: {
		Start: "CHEMICAL SHIFTS",
		Stop:  []string{"CHEMICAL SHIELDING SUMMARY"},
		Rules: []Rule{{Kind: KindShielding, Unit: PPMToAU}},
	},
}

// HessianTable is the derivative dialect: sigil-prefixed section names
// terminated by the next sigil or a literal "#". Each section opens
// with a dimension line, skipped by the rules.
var HessianTable = Table{
	Hessian: {
		Start: "$hessian",
		Stop:  []string{"$vibrational_frequencies"},
		Rules: []Rule{{Kind: KindMatrix, SkipFirst: 1}},
	},
	DipoleDerivatives: {
		Start: "$dipole_derivatives",
		Stop:  []string{"#"},
		Rules: []Rule{{Pos: 0, End: 4, SkipFirst: 1}},
	},
	PolarizabilityDerivatives: {
		Start: "$polarizability_derivatives",
		Stop:  []string{"#"},
		Rules: []Rule{{Pos: 0, End: 6, SkipFirst: 1}},
	},
}
