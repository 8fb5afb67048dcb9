package classifier

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/posturecheck/internal/posture"
)

// workspace holds the scratch matrices for one forward/backward pass over up to rows
// examples. Workspaces are pooled and must be returned with releaseWorkspace.
type workspace struct {
	rows int
	x    *mat.Dense
	y    *mat.Dense
	mask *mat.Dense
	z    [numLayers]*mat.Dense
	a    [numLayers]*mat.Dense
	dz   [numLayers]*mat.Dense
	da   [numLayers - 1]*mat.Dense
	grad gradients
}

// gradients holds parameter gradients with the same shapes as the model layers.
type gradients struct {
	W [numLayers]*mat.Dense
	B [numLayers][]float64
}

func newWorkspace(rows int) *workspace {
	ws := &workspace{
		rows: rows,
		x:    mat.NewDense(rows, posture.NumFeatures, nil),
		y:    mat.NewDense(rows, posture.NumClasses, nil),
		mask: mat.NewDense(rows, layerSizes[1], nil),
	}
	for l := 0; l < numLayers; l++ {
		out := layerSizes[l+1]
		ws.z[l] = mat.NewDense(rows, out, nil)
		ws.a[l] = mat.NewDense(rows, out, nil)
		ws.dz[l] = mat.NewDense(rows, out, nil)
		if l < numLayers-1 {
			ws.da[l] = mat.NewDense(rows, out, nil)
		}
		ws.grad.W[l] = mat.NewDense(layerSizes[l], out, nil)
		ws.grad.B[l] = make([]float64, out)
	}
	return ws
}

var workspaces = sync.Pool{
	New: func() any { return newWorkspace(DefaultBatchSize) },
}

// acquireWorkspace returns a workspace with room for at least rows examples.
func acquireWorkspace(rows int) *workspace {
	ws := workspaces.Get().(*workspace)
	if ws.rows < rows {
		workspaces.Put(ws)
		ws = newWorkspace(rows)
	}
	return ws
}

// releaseWorkspace returns ws to the pool.
func releaseWorkspace(ws *workspace) {
	if ws == nil {
		return
	}
	workspaces.Put(ws)
}

// batch is a view of the first n rows of a workspace.
type batch struct {
	n    int
	x    *mat.Dense
	y    *mat.Dense
	mask *mat.Dense
	z    [numLayers]*mat.Dense
	a    [numLayers]*mat.Dense
	dz   [numLayers]*mat.Dense
	da   [numLayers - 1]*mat.Dense
}

func rowsOf(m *mat.Dense, n int) *mat.Dense {
	_, c := m.Dims()
	return m.Slice(0, n, 0, c).(*mat.Dense)
}

func (ws *workspace) batch(n int) batch {
	b := batch{
		n:    n,
		x:    rowsOf(ws.x, n),
		y:    rowsOf(ws.y, n),
		mask: rowsOf(ws.mask, n),
	}
	for l := 0; l < numLayers; l++ {
		b.z[l] = rowsOf(ws.z[l], n)
		b.a[l] = rowsOf(ws.a[l], n)
		b.dz[l] = rowsOf(ws.dz[l], n)
	}
	for l := range b.da {
		b.da[l] = rowsOf(ws.da[l], n)
	}
	return b
}
