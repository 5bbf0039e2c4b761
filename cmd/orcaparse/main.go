package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/nzhan/orcaparse"
	"github.com/nzhan/orcaparse/store"
)

const version = "0.1.0"

var (
	configFile  string
	dbPath      string
	properties  []string
	maskCharges bool
	summaryFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orcaparse [files or directories]",
		Short: "Extract numeric properties from ORCA output files",
		Long: "orcaparse scans ORCA quantum-chemistry output files, extracts the " +
			"configured properties (energies, forces, dipole moments, Hessians, ...) " +
			"as numeric arrays, and ingests them into a SQLite dataset.",
		Args: cobra.MinimumNArgs(1),
		RunE: run,
		// Errors are reported below with the failure counts.
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "TOML run configuration file")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "dataset database path (overrides config)")
	rootCmd.Flags().StringSliceVarP(&properties, "properties", "p", nil, "properties to extract (overrides config)")
	rootCmd.Flags().BoolVar(&maskCharges, "mask-charges", false, "drop external point charges from atomistic properties")
	rootCmd.Flags().StringVar(&summaryFile, "summary", "", "write a YAML run summary to this file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("orcaparse version %s\n", version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := orcaparse.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = orcaparse.LoadConfig(configFile)
		if err != nil {
			return err
		}
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	if len(properties) > 0 {
		cfg.Properties = properties
	}
	if maskCharges {
		cfg.MaskCharges = true
	}

	files, err := expandArgs(args)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	parser, err := orcaparse.NewParser(cfg, st)
	if err != nil {
		return err
	}

	sum, err := parser.ParseAll(files, os.Stdout)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	green.Printf("parsed   %d\n", sum.Parsed)
	yellow.Printf("skipped  %d\nfiltered %d\n", sum.Skipped, sum.Filtered)
	red.Printf("failed   %d\n", sum.Failed)

	if summaryFile != "" {
		if err := writeSummary(summaryFile, sum); err != nil {
			return err
		}
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", sum.Failed, len(files))
	}
	return nil
}

// expandArgs resolves directory arguments to the *.out files inside
// them; plain file arguments pass through untouched.
func expandArgs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			matches, err := filepath.Glob(filepath.Join(arg, "*.out"))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
			continue
		}
		files = append(files, arg)
	}
	return files, nil
}

type runSummary struct {
	Parsed   int          `yaml:"parsed"`
	Skipped  int          `yaml:"skipped"`
	Filtered int          `yaml:"filtered"`
	Failed   int          `yaml:"failed"`
	Files    []fileStatus `yaml:"files"`
}

type fileStatus struct {
	File   string `yaml:"file"`
	Status string `yaml:"status"`
	Reason string `yaml:"reason,omitempty"`
}

func writeSummary(path string, sum orcaparse.Summary) error {
	rs := runSummary{
		Parsed:   sum.Parsed,
		Skipped:  sum.Skipped,
		Filtered: sum.Filtered,
		Failed:   sum.Failed,
	}
	for _, r := range sum.Results {
		rs.Files = append(rs.Files, fileStatus{File: r.File, Status: r.Status, Reason: r.Reason})
	}
	out, err := yaml.Marshal(rs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
