package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structgen/backend/internal/model"
	"github.com/structgen/backend/internal/service/intent"
	"github.com/structgen/backend/internal/service/synthesizer"
)

func TestReconcileRestoresUnintendedDrift(t *testing.T) {
	prior := synthesizer.SynthesizeFrame(1, 2)
	prior.Nodes[2].S = model.BoundaryFixed

	candidate := prior.Clone()
	candidate.Nodes[2].S = model.BoundaryFree
	candidate.Nodes[0].S = model.BoundaryPinned

	out := Reconcile(prior, candidate, intent.BoundaryChangeIntent{})
	assert.Equal(t, model.BoundaryFixed, out.Nodes[2].S)
	assert.Equal(t, model.BoundaryFixed, out.Nodes[0].S)
	assert.Empty(t, Mismatches(prior, out))
	assert.Equal(t, model.BoundaryFree, candidate.Nodes[2].S, "candidate must not be modified")
}

func TestReconcileOnlyComparesSharedNodes(t *testing.T) {
	prior := synthesizer.SynthesizeFrame(1, 1)
	candidate := synthesizer.SynthesizeFrame(2, 1)
	candidate.Nodes[1].S = model.BoundaryRoller
	candidate.Nodes[5].S = model.BoundaryPinned

	out := Reconcile(prior, candidate, intent.BoundaryChangeIntent{})
	require.Len(t, out.Nodes, 6)
	assert.Equal(t, model.BoundaryFixed, out.Nodes[1].S)
	assert.Equal(t, model.BoundaryPinned, out.Nodes[5].S, "nodes beyond the prior model are kept")
}

func TestReconcileIsIdempotent(t *testing.T) {
	prior := synthesizer.SynthesizeFrame(2, 2)
	candidate := prior.Clone()
	for k := range candidate.Nodes {
		candidate.Nodes[k].S = model.BoundaryRoller
	}

	none := intent.BoundaryChangeIntent{}
	once := Reconcile(prior, candidate, none)
	twice := Reconcile(prior, once, none)
	assert.Equal(t, once, twice)

	ground := intent.BoundaryChangeIntent{Detected: true, Target: intent.TargetGround, NewCondition: model.BoundaryPinned, Resolved: true}
	once = Reconcile(prior, candidate, ground)
	twice = Reconcile(prior, once, ground)
	assert.Equal(t, once, twice)
}

func TestReconcileGroundChange(t *testing.T) {
	prior := synthesizer.SynthesizeFrame(1, 2)
	candidate := prior.Clone()
	candidate.Nodes[4].S = model.BoundaryRoller

	change := intent.BoundaryChangeIntent{Detected: true, Target: intent.TargetGround, NewCondition: model.BoundaryPinned, Resolved: true}
	out := Reconcile(prior, candidate, change)
	for k, n := range out.Nodes {
		if n.Y == 0 {
			assert.Equal(t, model.BoundaryPinned, n.S, "ground node %d", k+1)
		}
	}
	assert.Equal(t, model.BoundaryRoller, out.Nodes[4].S, "non-ground nodes are left as generated")
}

func TestReconcileExampleNodeThree(t *testing.T) {
	prior := model.Model{Nodes: []model.Node{
		{X: 0, Y: 0, S: model.BoundaryPinned},
		{X: 6, Y: 0, S: model.BoundaryRoller},
		{X: 12, Y: 0, S: model.BoundaryFixed},
	}}
	candidate := prior.Clone()
	candidate.Nodes[2].S = model.BoundaryFree

	change := intent.DetectBoundaryChange("節点3に荷重を追加")
	require.False(t, change.Detected)
	out := Reconcile(prior, candidate, change)
	assert.Equal(t, model.BoundaryFixed, out.Nodes[2].S)
}

func TestMismatches(t *testing.T) {
	a := model.Model{Nodes: []model.Node{{S: "x"}, {S: "f"}, {S: "p"}}}
	b := model.Model{Nodes: []model.Node{{S: "x"}, {S: "p"}}}
	assert.Equal(t, []int{2}, Mismatches(a, b))
}

func TestRestoreByPositionAfterResize(t *testing.T) {
	prior := synthesizer.SynthesizeFrame(1, 2)
	prior.Nodes[0].S = model.BoundaryPinned

	// 1层3跨：地面层 4 个节点，编号与原模型错位
	candidate := synthesizer.SynthesizeFrame(1, 3)
	out, restored := RestoreByPosition(prior, candidate)

	require.Len(t, out.Nodes, 8)
	assert.Equal(t, 1, restored)
	assert.Equal(t, model.BoundaryPinned, out.Nodes[0].S)
	assert.Equal(t, model.BoundaryFixed, out.Nodes[3].S, "new ground node keeps its support")
	for _, n := range out.Nodes[4:] {
		assert.Equal(t, model.BoundaryFree, n.S)
	}
	assert.Equal(t, model.BoundaryFixed, candidate.Nodes[0].S, "candidate must not be modified")
}
