package mapping

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/exp"
)

// SimulateExperimentLP is the solver-backed reference implementation of the
// throughput model. It states the port-assignment LP explicitly and hands it
// to gonum's simplex solver:
//
//	minimize   t
//	subject to sum_{p in u} x[u,p]  = n_u     for every aggregated uop u
//	           sum_{u : p in u} x[u,p] <= t   for every port p
//	           x >= 0
//
// It must agree with SimulateExperiment within 1e-5. It is far slower and
// exists to pin down the combinatorial form, not to run in the search loop.
func (m *Mapping) SimulateExperimentLP(a *arch.Architecture, e *exp.Experiment) (float64, error) {
	uops, counts := m.aggregateUops(e)
	if len(uops) == 0 {
		return 0.0, nil
	}

	numPorts := a.NumPorts()

	// Variable layout: one x[u,p] per (uop, allowed port) pair, then t, then
	// one slack per port turning the load bound into an equality.
	type varRef struct {
		uopIdx int
		port   int
	}
	var xVars []varRef
	for i, u := range uops {
		for p := 0; p < numPorts; p++ {
			if u&(1<<p) != 0 {
				xVars = append(xVars, varRef{uopIdx: i, port: p})
			}
		}
	}
	tIdx := len(xVars)
	numVars := len(xVars) + 1 + numPorts
	numRows := len(uops) + numPorts

	A := mat.NewDense(numRows, numVars, nil)
	b := make([]float64, numRows)
	c := make([]float64, numVars)
	c[tIdx] = 1

	for j, v := range xVars {
		// count conservation row of this uop
		A.Set(v.uopIdx, j, 1)
		// load row of this port
		A.Set(len(uops)+v.port, j, 1)
	}
	for i := range uops {
		b[i] = float64(counts[i])
	}
	for p := 0; p < numPorts; p++ {
		row := len(uops) + p
		A.Set(row, tIdx, -1)
		A.Set(row, tIdx+1+p, 1) // slack
		b[row] = 0
	}

	opt, _, err := lp.Simplex(c, A, b, 0, nil)
	if err != nil {
		return 0, fmt.Errorf("port assignment LP failed: %w", err)
	}
	return opt, nil
}
