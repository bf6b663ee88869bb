package model

import "math"

// BoundaryCode 节点边界条件，线格式为单字符
type BoundaryCode string

const (
	BoundaryFree   BoundaryCode = "f"
	BoundaryPinned BoundaryCode = "p"
	BoundaryRoller BoundaryCode = "r"
	BoundaryFixed  BoundaryCode = "x"
)

// BoundaryCodes 全部合法边界条件
var BoundaryCodes = []BoundaryCode{BoundaryFree, BoundaryPinned, BoundaryRoller, BoundaryFixed}

// Valid 判断边界条件是否合法
func (c BoundaryCode) Valid() bool {
	switch c {
	case BoundaryFree, BoundaryPinned, BoundaryRoller, BoundaryFixed:
		return true
	}
	return false
}

// Supported 是否为支点（非自由端）
func (c BoundaryCode) Supported() bool {
	return c.Valid() && c != BoundaryFree
}

func (c BoundaryCode) String() string {
	switch c {
	case BoundaryFree:
		return "free"
	case BoundaryPinned:
		return "pinned"
	case BoundaryRoller:
		return "roller"
	case BoundaryFixed:
		return "fixed"
	}
	return "invalid(" + string(c) + ")"
}

// Node 节点。节点编号即其在 Nodes 中的 1-based 位置
type Node struct {
	X float64      `json:"x"`
	Y float64      `json:"y"`
	S BoundaryCode `json:"s" binding:"boundarycode"`
}

// Member 构件，I/J 为 1-based 节点编号
type Member struct {
	I  int     `json:"i"`
	J  int     `json:"j"`
	E  float64 `json:"E"`
	Ix float64 `json:"I"`
	A  float64 `json:"A"`
	Z  float64 `json:"Z"`
}

// PairKey 返回无序节点对的规范键
func (m Member) PairKey() [2]int {
	if m.I <= m.J {
		return [2]int{m.I, m.J}
	}
	return [2]int{m.J, m.I}
}

// NodeLoad 节点荷载
type NodeLoad struct {
	N  int      `json:"n"`
	Fx *float64 `json:"fx,omitempty"`
	Fy *float64 `json:"fy,omitempty"`
}

// MemberLoad 构件分布荷载
type MemberLoad struct {
	M int     `json:"m"`
	Q float64 `json:"q"`
}

// Model 二维结构模型
type Model struct {
	Nodes       []Node       `json:"nodes" binding:"dive"`
	Members     []Member     `json:"members"`
	NodeLoads   []NodeLoad   `json:"nodeLoads"`
	MemberLoads []MemberLoad `json:"memberLoads"`
}

// Clone 深拷贝。各修正阶段在拷贝上修改，不共享底层数组
func (m Model) Clone() Model {
	out := Model{
		Nodes:       append([]Node{}, m.Nodes...),
		Members:     append([]Member{}, m.Members...),
		NodeLoads:   make([]NodeLoad, 0, len(m.NodeLoads)),
		MemberLoads: append([]MemberLoad{}, m.MemberLoads...),
	}
	for _, l := range m.NodeLoads {
		out.NodeLoads = append(out.NodeLoads, NodeLoad{N: l.N, Fx: copyFloat(l.Fx), Fy: copyFloat(l.Fy)})
	}
	return out
}

// Normalize 将 nil 切片替换为空切片，保证线格式输出 [] 而不是 null
func (m Model) Normalize() Model {
	if m.Nodes == nil {
		m.Nodes = []Node{}
	}
	if m.Members == nil {
		m.Members = []Member{}
	}
	if m.NodeLoads == nil {
		m.NodeLoads = []NodeLoad{}
	}
	if m.MemberLoads == nil {
		m.MemberLoads = []MemberLoad{}
	}
	return m
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float 返回指向 v 的指针，便于构造可选荷载分量
func Float(v float64) *float64 {
	return &v
}

// NearlyEqual 坐标比较容差
func NearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
