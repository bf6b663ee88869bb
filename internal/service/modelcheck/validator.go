package modelcheck

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/structgen/backend/internal/model"
	"github.com/structgen/backend/internal/service/synthesizer"
)

// Issue 校验发现的单个问题
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Element string `json:"element,omitempty"`
}

// Result 校验结果
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

func (r *Result) add(code, element, format string, args ...any) {
	r.Valid = false
	r.Issues = append(r.Issues, Issue{Code: code, Element: element, Message: fmt.Sprintf(format, args...)})
}

func newResult() Result {
	return Result{Valid: true}
}

const (
	CodeInvalidCoordinate = "invalid_coordinate"
	CodeInvalidBoundary   = "invalid_boundary"
	CodeInvalidReference  = "invalid_reference"
	CodeSelfReference     = "self_reference"
	CodeInvalidSection    = "invalid_section"
	CodeInvalidLoad       = "invalid_load"
	CodeDuplicateMember   = "duplicate_member"
)

// Validate 检查引用完整性、边界条件、截面常数与重复构件
func Validate(m model.Model) Result {
	res := newResult()
	nodeCount := len(m.Nodes)

	for k, n := range m.Nodes {
		el := fmt.Sprintf("node %d", k+1)
		if !finite(n.X) || !finite(n.Y) {
			res.add(CodeInvalidCoordinate, el, "节点 %d 坐标非数值", k+1)
		}
		if !n.S.Valid() {
			res.add(CodeInvalidBoundary, el, "节点 %d 边界条件 %q 非法，应为 f/p/r/x", k+1, string(n.S))
		}
	}

	seen := make(map[[2]int]int, len(m.Members))
	for k, mb := range m.Members {
		el := fmt.Sprintf("member %d", k+1)
		if !inRange(mb.I, nodeCount) || !inRange(mb.J, nodeCount) {
			res.add(CodeInvalidReference, el, "构件 %d 引用节点 %d-%d 超出范围 1..%d", k+1, mb.I, mb.J, nodeCount)
			continue
		}
		if mb.I == mb.J {
			res.add(CodeSelfReference, el, "构件 %d 两端为同一节点 %d", k+1, mb.I)
			continue
		}
		if !validSection(mb) {
			res.add(CodeInvalidSection, el, "构件 %d 截面常数必须为正数", k+1)
		}
		if first, ok := seen[mb.PairKey()]; ok {
			res.add(CodeDuplicateMember, el, "构件 %d 与构件 %d 连接相同节点对 %d-%d", k+1, first, mb.I, mb.J)
			continue
		}
		seen[mb.PairKey()] = k + 1
	}

	for k, l := range m.NodeLoads {
		if !inRange(l.N, nodeCount) {
			res.add(CodeInvalidLoad, fmt.Sprintf("nodeLoad %d", k+1), "节点荷载 %d 引用节点 %d 不存在", k+1, l.N)
		}
	}
	for k, l := range m.MemberLoads {
		if !inRange(l.M, len(m.Members)) {
			res.add(CodeInvalidLoad, fmt.Sprintf("memberLoad %d", k+1), "构件荷载 %d 引用构件 %d 不存在", k+1, l.M)
		} else if !finite(l.Q) {
			res.add(CodeInvalidLoad, fmt.Sprintf("memberLoad %d", k+1), "构件荷载 %d 荷载值非数值", k+1)
		}
	}
	return res
}

// Fix 返回修正后的新模型：非法边界条件改为自由，非数值坐标置 0，
// 非法截面常数替换为默认值，删除非法/重复构件并重映射构件荷载编号，删除无效荷载
func Fix(m model.Model) model.Model {
	out := m.Clone()
	for k := range out.Nodes {
		n := &out.Nodes[k]
		if !finite(n.X) {
			n.X = 0
		}
		if !finite(n.Y) {
			n.Y = 0
		}
		if !n.S.Valid() {
			klog.V(6).Infof("[ModelCheck] 节点 %d 边界条件 %q 非法，改为自由", k+1, string(n.S))
			n.S = model.BoundaryFree
		}
	}

	nodeCount := len(out.Nodes)
	keep := make([]bool, len(out.Members))
	seen := make(map[[2]int]bool, len(out.Members))
	for k := range out.Members {
		mb := &out.Members[k]
		if !inRange(mb.I, nodeCount) || !inRange(mb.J, nodeCount) || mb.I == mb.J {
			continue
		}
		if seen[mb.PairKey()] {
			continue
		}
		seen[mb.PairKey()] = true
		if !validSection(*mb) {
			*mb = withDefaultSection(*mb, out.Nodes)
		}
		keep[k] = true
	}
	out = retainMembers(out, keep)

	nodeLoads := make([]model.NodeLoad, 0, len(out.NodeLoads))
	for _, l := range out.NodeLoads {
		if !inRange(l.N, nodeCount) {
			continue
		}
		if l.Fx != nil && !finite(*l.Fx) {
			l.Fx = nil
		}
		if l.Fy != nil && !finite(*l.Fy) {
			l.Fy = nil
		}
		nodeLoads = append(nodeLoads, l)
	}
	out.NodeLoads = nodeLoads
	return out.Normalize()
}

// RemoveDuplicateMembers 删除连接相同无序节点对的后续构件，首个保留
// 引用被删构件的荷载一并删除，其余构件荷载按新编号重映射
func RemoveDuplicateMembers(m model.Model) (model.Model, int) {
	out := m.Clone()
	keep := make([]bool, len(out.Members))
	seen := make(map[[2]int]bool, len(out.Members))
	removed := 0
	for k, mb := range out.Members {
		if seen[mb.PairKey()] {
			klog.V(6).Infof("[ModelCheck] 删除重复构件 %d (%d-%d)", k+1, mb.I, mb.J)
			removed++
			continue
		}
		seen[mb.PairKey()] = true
		keep[k] = true
	}
	if removed == 0 {
		return out.Normalize(), 0
	}
	return retainMembers(out, keep).Normalize(), removed
}

// retainMembers 保留 keep 为 true 的构件，构件荷载随之重映射，out 须为调用方持有的拷贝
func retainMembers(out model.Model, keep []bool) model.Model {
	remap := make(map[int]int, len(out.Members))
	members := make([]model.Member, 0, len(out.Members))
	for k, mb := range out.Members {
		if !keep[k] {
			continue
		}
		members = append(members, mb)
		remap[k+1] = len(members)
	}

	loads := make([]model.MemberLoad, 0, len(out.MemberLoads))
	for _, l := range out.MemberLoads {
		idx, ok := remap[l.M]
		if !ok || !finite(l.Q) {
			continue
		}
		l.M = idx
		loads = append(loads, l)
	}
	out.Members = members
	out.MemberLoads = loads
	return out
}

func withDefaultSection(mb model.Member, nodes []model.Node) model.Member {
	sec := synthesizer.BeamSection
	if model.NearlyEqual(nodes[mb.I-1].X, nodes[mb.J-1].X) {
		sec = synthesizer.ColumnSection
	}
	if !(mb.E > 0) || !finite(mb.E) {
		mb.E = sec.E
	}
	if !(mb.Ix > 0) || !finite(mb.Ix) {
		mb.Ix = sec.I
	}
	if !(mb.A > 0) || !finite(mb.A) {
		mb.A = sec.A
	}
	if !(mb.Z > 0) || !finite(mb.Z) {
		mb.Z = sec.Z
	}
	return mb
}

func validSection(mb model.Member) bool {
	for _, v := range []float64{mb.E, mb.Ix, mb.A, mb.Z} {
		if !(v > 0) || !finite(v) {
			return false
		}
	}
	return true
}

func inRange(idx, n int) bool {
	return idx >= 1 && idx <= n
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
