package modelcheck

import (
	"math"

	"github.com/structgen/backend/internal/model"
	"github.com/structgen/backend/internal/service/intent"
)

const (
	CodeTrussChord   = "truss_chord"
	CodeTrussSupport = "truss_support"
	CodeBeamNodes    = "beam_nodes"
	CodeBeamSupport  = "beam_support"
)

// CheckStructure 桁架与梁的宽松校验，不触发重新生成，仅用于构造修正提示词
func CheckStructure(m model.Model, t intent.StructureType) Result {
	switch t {
	case intent.StructureTruss:
		return CheckTruss(m)
	case intent.StructureBeam:
		return CheckBeam(m)
	}
	return newResult()
}

// CheckTruss 下弦、上弦各至少 2 个节点；下弦左端铰支、右端滚动支座
func CheckTruss(m model.Model) Result {
	res := newResult()
	if len(m.Nodes) == 0 {
		res.add(CodeTrussChord, "", "桁架没有节点")
		return res
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, n := range m.Nodes {
		minY = math.Min(minY, n.Y)
		maxY = math.Max(maxY, n.Y)
	}

	var bottom, top []int
	for k, n := range m.Nodes {
		switch {
		case model.NearlyEqual(n.Y, minY):
			bottom = append(bottom, k)
		case model.NearlyEqual(n.Y, maxY):
			top = append(top, k)
		}
	}
	if len(bottom) < 2 {
		res.add(CodeTrussChord, "bottom chord", "下弦节点 %d 个，至少需要 2 个", len(bottom))
	}
	if len(top) < 2 {
		res.add(CodeTrussChord, "top chord", "上弦节点 %d 个，至少需要 2 个（上弦须高于下弦）", len(top))
	}
	if len(bottom) == 0 {
		return res
	}

	left, right := bottom[0], bottom[0]
	for _, k := range bottom {
		if m.Nodes[k].X < m.Nodes[left].X {
			left = k
		}
		if m.Nodes[k].X > m.Nodes[right].X {
			right = k
		}
	}
	if s := m.Nodes[left].S; s != model.BoundaryPinned {
		res.add(CodeTrussSupport, "left support", "下弦左端节点 %d 应为铰支 (p)，实际为 %s", left+1, s)
	}
	if left != right {
		if s := m.Nodes[right].S; s != model.BoundaryRoller {
			res.add(CodeTrussSupport, "right support", "下弦右端节点 %d 应为滚动支座 (r)，实际为 %s", right+1, s)
		}
	}
	return res
}

// CheckBeam 至少 2 个节点、1 根构件且有支点；只有一个支点时必须为固定端（悬臂）
func CheckBeam(m model.Model) Result {
	res := newResult()
	if len(m.Nodes) < 2 {
		res.add(CodeBeamNodes, "", "梁节点 %d 个，至少需要 2 个", len(m.Nodes))
	}
	if len(m.Members) < 1 {
		res.add(CodeBeamNodes, "", "梁没有构件")
	}

	var supports []model.BoundaryCode
	for _, n := range m.Nodes {
		if n.S.Supported() {
			supports = append(supports, n.S)
		}
	}
	switch {
	case len(supports) == 0:
		res.add(CodeBeamSupport, "", "梁没有任何支点")
	case len(supports) == 1 && supports[0] != model.BoundaryFixed:
		res.add(CodeBeamSupport, "", "只有一个支点时必须为固定端 (x)，实际为 %s", supports[0])
	}
	return res
}
