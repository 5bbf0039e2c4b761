// Package orcaparse extracts structured numeric properties (energies,
// geometries, forces, dipole moments, polarizabilities, shielding
// tensors, Hessians and property derivatives) from ORCA
// quantum-chemistry output files and ingests them into a SQLite
// dataset.
//
// The extraction core lives in the extract subpackage; this package
// layers the file-level policy on top of it: convergence checking,
// companion Hessian files, external-charge masking, outlier filtering,
// and buffered storage.
package orcaparse
