package reporter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/getkin/kin-openapi/openapi3"

	"restqa/internal/contract"
)

type CoverageReport struct {
	Total        int      `json:"total"`
	Covered      int      `json:"covered"`
	Percent      float64  `json:"percent"`
	CoveredSet   []string `json:"covered_set"`
	UncoveredSet []string `json:"uncovered_set"`
}

// ComputeCoverage compares the operations doc declares with those cov saw.
func ComputeCoverage(doc *openapi3.T, cov *contract.Coverage) CoverageReport {
	all := contract.Operations(doc)

	var coveredList, uncoveredList []string
	for _, op := range all {
		if cov.Has(op) {
			coveredList = append(coveredList, op.String())
		} else {
			uncoveredList = append(uncoveredList, op.String())
		}
	}

	return CoverageReport{
		Total:        len(all),
		Covered:      len(coveredList),
		Percent:      pct(len(coveredList), len(all)),
		CoveredSet:   coveredList,
		UncoveredSet: uncoveredList,
	}
}

func WriteCoverage(w io.Writer, rep CoverageReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// Check fails when coverage is below min percent.
func (r CoverageReport) Check(min float64) error {
	if r.Percent+1e-9 < min {
		return fmt.Errorf("openapi coverage %.1f%% is below the required %.1f%% (%d of %d operations)",
			r.Percent, min, r.Covered, r.Total)
	}
	return nil
}

func pct(n, d int) float64 {
	if d == 0 {
		return 100.0
	}
	return float64(n) * 100.0 / float64(d)
}
