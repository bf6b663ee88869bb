package synthesizer

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/structgen/backend/internal/model"
)

const (
	// SpanPitch 框架跨距（米）
	SpanPitch = 6.0
	// StoryHeight 框架层高（米）
	StoryHeight = 4.0
	// TrussPanel 桁架节间长度（米）
	TrussPanel = 3.0

	// maxGridNodes 超出时视为输入异常，返回最小模型
	maxGridNodes = 2000
)

// Section 截面常数
type Section struct {
	E, I, A, Z float64
}

var (
	ColumnSection = Section{E: 2.05e8, I: 1.2e-4, A: 6.0e-3, Z: 8.0e-4}
	BeamSection   = Section{E: 2.05e8, I: 2.0e-4, A: 8.0e-3, Z: 1.0e-3}
	TrussSection  = Section{E: 2.05e8, I: 1.0e-5, A: 2.0e-3, Z: 1.0e-4}
)

func (s Section) member(i, j int) model.Member {
	return model.Member{I: i, J: j, E: s.E, Ix: s.I, A: s.A, Z: s.Z}
}

// SynthesizeFrame 生成 (layers+1)×(spans+1) 的规则框架
// 节点按层优先排列：第 L 层第 c 列节点编号为 L*(spans+1)+c+1
// 柱 (spans+1)*layers 根，梁 spans*layers 根，地面层不设梁
func SynthesizeFrame(layers, spans int) (out model.Model) {
	defer recoverToMinimal("SynthesizeFrame", &out)

	if layers < 1 || spans < 1 {
		return fallback(fmt.Errorf("invalid frame dimensions layers=%d spans=%d", layers, spans))
	}
	if (layers+1)*(spans+1) > maxGridNodes {
		return fallback(fmt.Errorf("frame too large layers=%d spans=%d", layers, spans))
	}

	cols := spans + 1
	id := func(layer, col int) int { return layer*cols + col + 1 }

	m := model.Model{
		Nodes:       make([]model.Node, 0, (layers+1)*cols),
		Members:     make([]model.Member, 0, cols*layers+spans*layers),
		NodeLoads:   []model.NodeLoad{},
		MemberLoads: []model.MemberLoad{},
	}
	for layer := 0; layer <= layers; layer++ {
		code := model.BoundaryFree
		if layer == 0 {
			code = model.BoundaryFixed
		}
		for col := 0; col < cols; col++ {
			m.Nodes = append(m.Nodes, model.Node{
				X: float64(col) * SpanPitch,
				Y: float64(layer) * StoryHeight,
				S: code,
			})
		}
	}

	for layer := 0; layer < layers; layer++ {
		for col := 0; col < cols; col++ {
			m.Members = append(m.Members, ColumnSection.member(id(layer, col), id(layer+1, col)))
		}
	}
	for layer := 1; layer <= layers; layer++ {
		for col := 0; col < spans; col++ {
			m.Members = append(m.Members, BeamSection.member(id(layer, col), id(layer, col+1)))
		}
	}

	klog.V(6).Infof("[Synthesizer] 生成框架: layers=%d spans=%d nodes=%d members=%d",
		layers, spans, len(m.Nodes), len(m.Members))
	return m
}

// SynthesizeTruss 生成平行弦桁架
// 下弦 y=0、上弦 y=height，节点自 0 起按 TrussPanel 递增直至 spanLength（含端点）
// 下弦左端铰支、右端滚动支座，其余自由；斜杆为下弦 k→上弦 k+1 与上弦 k→下弦 k+1
func SynthesizeTruss(height, spanLength float64) (out model.Model) {
	defer recoverToMinimal("SynthesizeTruss", &out)

	if !(height > 0) || !(spanLength > 0) || math.IsInf(height, 0) || math.IsInf(spanLength, 0) {
		return fallback(fmt.Errorf("invalid truss dimensions height=%v span=%v", height, spanLength))
	}

	xs := panelPoints(spanLength)
	if 2*len(xs) > maxGridNodes {
		return fallback(fmt.Errorf("truss too large span=%v", spanLength))
	}
	n := len(xs)
	bottom := func(k int) int { return k + 1 }
	top := func(k int) int { return n + k + 1 }

	m := model.Model{
		Nodes:       make([]model.Node, 0, 2*n),
		Members:     make([]model.Member, 0, 4*(n-1)),
		NodeLoads:   []model.NodeLoad{},
		MemberLoads: []model.MemberLoad{},
	}
	for k, x := range xs {
		code := model.BoundaryFree
		switch k {
		case 0:
			code = model.BoundaryPinned
		case n - 1:
			code = model.BoundaryRoller
		}
		m.Nodes = append(m.Nodes, model.Node{X: x, Y: 0, S: code})
	}
	for _, x := range xs {
		m.Nodes = append(m.Nodes, model.Node{X: x, Y: height, S: model.BoundaryFree})
	}

	for k := 0; k < n-1; k++ {
		m.Members = append(m.Members, TrussSection.member(bottom(k), bottom(k+1)))
	}
	for k := 0; k < n-1; k++ {
		m.Members = append(m.Members, TrussSection.member(top(k), top(k+1)))
	}
	for k := 0; k < n-1; k++ {
		m.Members = append(m.Members,
			TrussSection.member(bottom(k), top(k+1)),
			TrussSection.member(top(k), bottom(k+1)),
		)
	}

	klog.V(6).Infof("[Synthesizer] 生成桁架: height=%.2f span=%.2f nodes=%d members=%d",
		height, spanLength, len(m.Nodes), len(m.Members))
	return m
}

// panelPoints 0, p, 2p, ... 最后一点固定为 spanLength
func panelPoints(spanLength float64) []float64 {
	xs := []float64{0}
	for x := TrussPanel; x < spanLength-1e-9; x += TrussPanel {
		xs = append(xs, x)
	}
	return append(xs, spanLength)
}

// MinimalModel 固定的 4 节点门型框架，所有失败路径的最终兜底
func MinimalModel() model.Model {
	return model.Model{
		Nodes: []model.Node{
			{X: 0, Y: 0, S: model.BoundaryFixed},
			{X: 0, Y: StoryHeight, S: model.BoundaryFree},
			{X: SpanPitch, Y: StoryHeight, S: model.BoundaryFree},
			{X: SpanPitch, Y: 0, S: model.BoundaryFixed},
		},
		Members: []model.Member{
			ColumnSection.member(1, 2),
			BeamSection.member(2, 3),
			ColumnSection.member(4, 3),
		},
		NodeLoads:   []model.NodeLoad{},
		MemberLoads: []model.MemberLoad{},
	}
}

func fallback(err error) model.Model {
	klog.Warningf("[Synthesizer] %v，使用最小模型", err)
	return MinimalModel()
}

func recoverToMinimal(op string, out *model.Model) {
	if r := recover(); r != nil {
		klog.Errorf("[Synthesizer] %s panic: %v，使用最小模型", op, r)
		*out = MinimalModel()
	}
}
