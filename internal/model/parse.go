package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/structgen/backend/internal/utils"
)

// ErrInvalidModel 生成服务返回的内容无法解析为结构模型
var ErrInvalidModel = errors.New("invalid structural model json")

// number 宽松数值：接受 JSON 数字和数字字符串，无法解析的值记为 NaN 交给校验器处理
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		v = math.NaN()
	}
	*n = number(v)
	return nil
}

// 宽松的线格式：数值字段允许缺失，缺失值留给校验器标记
type wireNode struct {
	X *number `json:"x"`
	Y *number `json:"y"`
	S string  `json:"s"`
}

type wireMember struct {
	I  *number `json:"i"`
	J  *number `json:"j"`
	E  *number `json:"E"`
	I2 *number `json:"I"`
	A  *number `json:"A"`
	Z  *number `json:"Z"`
}

type wireNodeLoad struct {
	N  *number `json:"n"`
	Fx *number `json:"fx"`
	Fy *number `json:"fy"`
}

type wireMemberLoad struct {
	M *number `json:"m"`
	Q *number `json:"q"`
}

type wireModel struct {
	Nodes       []wireNode       `json:"nodes"`
	Members     []wireMember     `json:"members"`
	NodeLoads   []wireNodeLoad   `json:"nodeLoads"`
	MemberLoads []wireMemberLoad `json:"memberLoads"`
}

// ParseModel 从生成服务的文本中提取并解析结构模型
func ParseModel(content string) (Model, error) {
	raw := utils.ExtractJSON(strings.TrimSpace(content))
	if raw == "" {
		return Model{}, ErrInvalidModel
	}

	var w wireModel
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Model{}, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if len(w.Nodes) == 0 {
		return Model{}, fmt.Errorf("%w: no nodes", ErrInvalidModel)
	}

	m := Model{
		Nodes:       make([]Node, 0, len(w.Nodes)),
		Members:     make([]Member, 0, len(w.Members)),
		NodeLoads:   make([]NodeLoad, 0, len(w.NodeLoads)),
		MemberLoads: make([]MemberLoad, 0, len(w.MemberLoads)),
	}
	for _, n := range w.Nodes {
		m.Nodes = append(m.Nodes, Node{X: orNaN(n.X), Y: orNaN(n.Y), S: ParseBoundaryCode(n.S)})
	}
	for _, mb := range w.Members {
		m.Members = append(m.Members, Member{
			I:  toIndex(mb.I),
			J:  toIndex(mb.J),
			E:  orZero(mb.E),
			Ix: orZero(mb.I2),
			A:  orZero(mb.A),
			Z:  orZero(mb.Z),
		})
	}
	for _, l := range w.NodeLoads {
		m.NodeLoads = append(m.NodeLoads, NodeLoad{N: toIndex(l.N), Fx: optional(l.Fx), Fy: optional(l.Fy)})
	}
	for _, l := range w.MemberLoads {
		m.MemberLoads = append(m.MemberLoads, MemberLoad{M: toIndex(l.M), Q: orZero(l.Q)})
	}
	return m, nil
}

// ParseBoundaryCode 接受单字符码和常见的英文全称
func ParseBoundaryCode(s string) BoundaryCode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "free":
		return BoundaryFree
	case "p", "pin", "pinned":
		return BoundaryPinned
	case "r", "roller":
		return BoundaryRoller
	case "x", "fix", "fixed":
		return BoundaryFixed
	}
	return BoundaryCode(s)
}

// toIndex 非整数或缺失的编号返回 0，由校验器视为越界引用
func toIndex(v *number) int {
	if v == nil {
		return 0
	}
	f := float64(*v)
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0
	}
	return int(f)
}

func orNaN(v *number) float64 {
	if v == nil {
		return math.NaN()
	}
	return float64(*v)
}

func orZero(v *number) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

// optional 缺失或无法解析的荷载分量视为未给出
func optional(v *number) *float64 {
	if v == nil || math.IsNaN(float64(*v)) {
		return nil
	}
	f := float64(*v)
	return &f
}
