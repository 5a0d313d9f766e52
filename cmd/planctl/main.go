// Command planctl runs a plan locally from a YAML file, without any of the
// service dependencies.
//
// Usage:
//
//	planctl [-config configs/development.yaml] [-page 1] [-limit 5] [-sgpa 9.1] [-cgpa 8] [-json] plan.yaml
//
// The file holds history, draft, targetSgpa, targetCgpa, alphabet and cap.
// Values it leaves out come from the planner section of -config, or from
// the built-in defaults when no config is given.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "planctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("planctl", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional service config supplying planner defaults")
	page := fs.Int("page", 1, "page of combinations to print")
	limit := fs.Int("limit", 5, "combinations per page")
	sgpaFilter := fs.String("sgpa", "", "only list combinations whose SGPA contains this text")
	cgpaFilter := fs.String("cgpa", "", "only list combinations whose CGPA contains this text")
	asJSON := fs.Bool("json", false, "print the full response as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected exactly one plan file")
	}

	req, err := readRequest(fs.Arg(0))
	if err != nil {
		return err
	}
	req.Page = *page
	req.Limit = *limit
	req.SGPAFilter = *sgpaFilter
	req.CGPAFilter = *cgpaFilter

	table := grading.DefaultTable()
	settings, err := loadSettings(table, *configPath)
	if err != nil {
		return err
	}
	resp, err := planner.Plan(table, req, settings)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return printSummary(stdout, resp)
}

func loadSettings(table *grading.Table, path string) (planner.Settings, error) {
	if path == "" {
		return planner.DefaultSettings(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return planner.Settings{}, err
	}
	return planner.SettingsFromConfig(table, cfg.Planner)
}

func readRequest(path string) (planner.Request, error) {
	var req planner.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("reading plan file: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parsing plan file %s: %w", path, err)
	}
	return req, nil
}

func printSummary(w io.Writer, resp *planner.Response) error {
	fmt.Fprintf(w, "SGPA per semester: %s\n", strings.Join(resp.SGPAPerHistoricalSemester, ", "))
	fmt.Fprintf(w, "CGPA so far:       %s\n", resp.CGPAUpToHistory)
	capped := ""
	if resp.Capped {
		capped = " (capped)"
	}
	fmt.Fprintf(w, "Combinations:      %d%s, %d matching\n", resp.PossibleCombinationsCount, capped, resp.MatchedCount)
	fmt.Fprintf(w, "Page %d of %d\n\n", resp.CurrentPage, resp.TotalPages)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tGRADES\tSGPA\tCGPA")
	for _, r := range resp.OptimizedCombinations {
		grades := make([]string, len(r.Assignment))
		for i, c := range r.Assignment {
			grades[i] = c.Code + "=" + string(c.Grade)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Ordinal, strings.Join(grades, " "), planner.FormatValue(r.SGPA), planner.FormatValue(r.CGPA))
	}
	return tw.Flush()
}
