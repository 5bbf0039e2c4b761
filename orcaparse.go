package orcaparse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/nzhan/orcaparse/extract"
	"github.com/nzhan/orcaparse/store"
)

// Second-to-last line of a finished computation.
const convergedFlag = "****ORCA TERMINATED NORMALLY****"

// hessianExt is the companion file holding second derivatives, written
// next to the primary output.
const hessianExt = ".oinp.hess"

var (
	ErrNotConverged    = errors.New("computation did not terminate normally")
	ErrNoHessianFile   = errors.New("Hessian file not found")
	ErrMissingProperty = errors.New("property missing from output")
)

var mainProperties = map[string]bool{
	extract.Energy:         true,
	extract.Forces:         true,
	extract.DipoleMoment:   true,
	extract.Polarizability: true,
	extract.Shielding:      true,
}

var hessianProperties = map[string]bool{
	extract.Hessian:                   true,
	extract.DipoleDerivatives:         true,
	extract.PolarizabilityDerivatives: true,
}

// atomistic marks per-atom properties subject to external-charge
// masking.
var atomistic = map[string]bool{
	extract.Forces:    true,
	extract.Shielding: true,
}

// Molecule is the parsed content of one computation: species labels,
// positions in atomic units of shape (natoms, 3), and the requested
// property tensors.
type Molecule struct {
	Species    []string
	Positions  *extract.Tensor
	Properties map[string]*extract.Tensor
}

// Summary counts the outcomes of a ParseAll run.
type Summary struct {
	Parsed   int
	Skipped  int
	Filtered int
	Failed   int
	Results  []FileResult
}

// FileResult records the outcome for one input file.
type FileResult struct {
	File   string
	Status string
	Reason string
}

// Parser extracts a configured property set from ORCA output files.
// One Parser scans files sequentially; concurrent use needs one Parser
// per goroutine because extractor state is mutated in place.
type Parser struct {
	main        *extract.Engine
	hessian     *extract.Engine // nil unless derivative properties are requested
	filter      map[string]float64
	maskCharges bool
	bufferSize  int
	store       *store.Store
}

// NewParser builds a parser for cfg's properties. st may be nil when
// only ParseMolecule is used; ParseAll requires it.
func NewParser(cfg Config, st *store.Store) (*Parser, error) {
	var mains, hessians []string
	for _, p := range cfg.Properties {
		switch {
		case mainProperties[p]:
			mains = append(mains, p)
		case hessianProperties[p]:
			hessians = append(hessians, p)
		default:
			return nil, fmt.Errorf("%w: %q", extract.ErrUnknownProperty, p)
		}
	}

	// Geometry is always needed alongside the requested properties.
	main, err := extract.NewEngine(extract.MainTable, append(mains, extract.Atoms)...)
	if err != nil {
		return nil, err
	}
	p := &Parser{
		main:        main,
		filter:      cfg.Filter,
		maskCharges: cfg.MaskCharges,
		bufferSize:  cfg.BufferSize,
		store:       st,
	}
	if p.bufferSize <= 0 {
		p.bufferSize = 10
	}
	if len(hessians) > 0 {
		p.hessian, err = extract.NewEngine(extract.HessianTable, hessians...)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ParseMolecule extracts all configured properties from one output
// file and, if derivative properties are configured, from its
// companion Hessian file. A missing section for a requested property
// fails the whole file.
func (p *Parser) ParseMolecule(path string) (*Molecule, error) {
	if err := checkConvergence(path); err != nil {
		return nil, err
	}
	results, err := p.main.ScanFile(path)
	if err != nil {
		return nil, err
	}
	mol := &Molecule{Properties: make(map[string]*extract.Tensor)}
	for key, out := range results {
		if key == extract.Atoms {
			if err := fillAtoms(mol, out); err != nil {
				return nil, err
			}
			continue
		}
		if out.Single == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingProperty, key)
		}
		mol.Properties[key] = out.Single.Tensor
	}
	if p.maskCharges {
		maskExternalCharges(mol)
	}
	if p.hessian != nil {
		if err := p.parseHessian(trimExt(path)+hessianExt, mol); err != nil {
			return nil, err
		}
	}
	return mol, nil
}

func (p *Parser) parseHessian(path string, mol *Molecule) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrNoHessianFile, path)
	}
	results, err := p.hessian.ScanFile(path)
	if err != nil {
		return err
	}
	for key, out := range results {
		if out.Single == nil {
			return fmt.Errorf("%w: %s", ErrMissingProperty, key)
		}
		t := out.Single.Tensor
		switch key {
		case extract.DipoleDerivatives:
			t, err = extract.FormatDipoleDerivatives(t)
		case extract.PolarizabilityDerivatives:
			t, err = extract.FormatPolarizabilityDerivatives(t)
		}
		if err != nil {
			return err
		}
		mol.Properties[key] = t
	}
	return nil
}

// fillAtoms unpacks the two-rule atoms entry: a species column and a
// coordinate block already converted to atomic units.
func fillAtoms(mol *Molecule, out extract.Output) error {
	if len(out.Multi) != 2 || out.Multi[0] == nil || out.Multi[1] == nil {
		return fmt.Errorf("%w: %s", ErrMissingProperty, extract.Atoms)
	}
	species := out.Multi[0].Text
	coords := out.Multi[1].Tensor
	if coords.Size() != 3*len(species) {
		return fmt.Errorf("%d coordinates for %d atoms", coords.Size(), len(species))
	}
	// A one-atom geometry squeezes to a bare vector; restore the
	// (natoms, 3) shape either way.
	mol.Species = species
	mol.Positions = extract.NewTensor([]int{len(species), 3}, coords.Data)
	return nil
}

// maskExternalCharges drops the trailing external point charges
// (species "Q") that some inputs append, truncating the species list,
// the positions, and every atomistic property to the real atoms.
func maskExternalCharges(mol *Molecule) {
	natoms := 0
	for _, s := range mol.Species {
		if s != "Q" {
			natoms++
		}
	}
	if natoms == len(mol.Species) {
		return
	}
	mol.Species = mol.Species[:natoms]
	mol.Positions = mol.Positions.FirstRows(natoms)
	for key, t := range mol.Properties {
		if atomistic[key] {
			mol.Properties[key] = t.FirstRows(natoms)
		}
	}
}

// ParseAll parses the given files in sorted order, writing one status
// line per file to w, and ingests the surviving molecules into the
// store in batches. Missing files and unconverged or unparseable
// outputs are counted, not fatal; only store failures abort the run.
func (p *Parser) ParseAll(files []string, w io.Writer) (Summary, error) {
	if p.store == nil {
		return Summary{}, errors.New("no store configured")
	}
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	var (
		sum   Summary
		batch []*Molecule
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.store.AddSystems(toSystems(batch)); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}
	record := func(file, status, reason string) {
		sum.Results = append(sum.Results, FileResult{File: file, Status: status, Reason: reason})
	}

	for _, file := range sorted {
		if _, err := os.Stat(file); err != nil {
			fmt.Fprintf(w, "skipped  %s: no such file\n", file)
			sum.Skipped++
			record(file, "skipped", "no such file")
			continue
		}
		mol, err := p.ParseMolecule(file)
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", file, err)
			sum.Failed++
			record(file, "failed", err.Error())
			continue
		}
		if key, ok := p.filtered(mol); ok {
			fmt.Fprintf(w, "filtered %s: %s norm above threshold\n", file, key)
			sum.Filtered++
			record(file, "filtered", key+" norm above threshold")
			continue
		}
		fmt.Fprintf(w, "parsed   %s\n", file)
		sum.Parsed++
		record(file, "parsed", "")
		batch = append(batch, mol)
		if len(batch) >= p.bufferSize {
			if err := flush(); err != nil {
				return sum, err
			}
		}
	}
	if err := flush(); err != nil {
		return sum, err
	}
	if err := p.store.SetMetadata(p.metadata()); err != nil {
		return sum, err
	}
	return sum, nil
}

func (p *Parser) metadata() map[string]string {
	keys := p.main.Keys()
	if p.hessian != nil {
		keys = append(keys, p.hessian.Keys()...)
	}
	sort.Strings(keys)
	return map[string]string{"properties": strings.Join(keys, " ")}
}

// filtered reports the first configured property whose L2 norm exceeds
// its threshold.
func (p *Parser) filtered(mol *Molecule) (string, bool) {
	keys := make([]string, 0, len(p.filter))
	for k := range p.filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t, ok := mol.Properties[k]; ok && floats.Norm(t.Data, 2) > p.filter[k] {
			return k, true
		}
	}
	return "", false
}

func toSystems(mols []*Molecule) []store.System {
	out := make([]store.System, len(mols))
	for i, m := range mols {
		props := make(map[string]store.Array, len(m.Properties))
		for k, t := range m.Properties {
			props[k] = store.Array{Shape: t.Shape, Data: t.Data}
		}
		out[i] = store.System{
			Species:    m.Species,
			Positions:  m.Positions.Data,
			Properties: props,
		}
	}
	return out
}

// checkConvergence requires the termination flag on the second-to-last
// line of the output file.
func checkConvergence(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(lines) < 2 || strings.TrimSpace(lines[len(lines)-2]) != convergedFlag {
		return fmt.Errorf("%w: %s", ErrNotConverged, path)
	}
	return nil
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
