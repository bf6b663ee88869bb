package modelcheck

import (
	"math"
	"sort"

	"k8s.io/klog/v2"

	"github.com/structgen/backend/internal/model"
	"github.com/structgen/backend/internal/service/intent"
	"github.com/structgen/backend/internal/service/synthesizer"
)

const (
	CodeNodeCount   = "node_count"
	CodeMemberCount = "member_count"
	CodeLayerShape  = "layer_shape"
	CodeSpanCount   = "span_count"

	// MaxSpans 尺寸校验适用的跨数上限
	MaxSpans = 10
)

// ExpectedFrameCounts 规则框架的期望节点数与构件数（柱 + 梁，地面层无梁）
func ExpectedFrameCounts(dims intent.Dimensions) (nodes, members int) {
	l, s := dims.Layers, dims.Spans
	return (l + 1) * (s + 1), (s+1)*l + s*l
}

// Applicable 尺寸校验只对 1..MaxSpans 跨、至少 1 层的框架生效
func Applicable(dims intent.Dimensions) bool {
	return dims.Layers >= 1 && dims.Spans >= 1 && dims.Spans <= MaxSpans
}

// CheckFrameDimensions 校验框架节点数、构件数以及按 y 分层后的形状
func CheckFrameDimensions(m model.Model, dims intent.Dimensions) Result {
	res := newResult()
	if !Applicable(dims) {
		klog.V(6).Infof("[ModelCheck] 跨数 %d 超出校验范围，跳过尺寸校验", dims.Spans)
		return res
	}

	wantNodes, wantMembers := ExpectedFrameCounts(dims)
	if len(m.Nodes) != wantNodes {
		res.add(CodeNodeCount, "", "节点数 %d，期望 %d (%d层×%d跨)", len(m.Nodes), wantNodes, dims.Layers, dims.Spans)
	}
	if len(m.Members) != wantMembers {
		res.add(CodeMemberCount, "", "构件数 %d，期望 %d", len(m.Members), wantMembers)
	}

	rows := groupByElevation(m.Nodes)
	if len(rows) == 0 {
		return res
	}
	if len(rows) != dims.Layers+1 {
		res.add(CodeLayerShape, "", "按标高分组得到 %d 行，期望 %d 行", len(rows), dims.Layers+1)
	}
	for _, r := range rows[1:] {
		if r.count != rows[0].count {
			res.add(CodeLayerShape, "", "标高 %.3f 处节点数 %d 与地面层 %d 不一致", r.y, r.count, rows[0].count)
			break
		}
	}
	if rows[0].count-1 != dims.Spans {
		res.add(CodeSpanCount, "", "地面层节点 %d 个，对应 %d 跨，期望 %d 跨", rows[0].count, rows[0].count-1, dims.Spans)
	}
	return res
}

// FixFrameDimensions 尺寸不符时重新生成框架，荷载按编号原样移植（超出新拓扑的荷载丢弃）
func FixFrameDimensions(m model.Model, dims intent.Dimensions) (model.Model, bool) {
	res := CheckFrameDimensions(m, dims)
	if res.Valid {
		return m.Clone().Normalize(), false
	}
	for _, is := range res.Issues {
		klog.V(6).Infof("[ModelCheck] 尺寸不符: %s", is.Message)
	}

	out := synthesizer.SynthesizeFrame(dims.Layers, dims.Spans)
	for _, l := range m.Clone().NodeLoads {
		if inRange(l.N, len(out.Nodes)) {
			out.NodeLoads = append(out.NodeLoads, l)
		}
	}
	for _, l := range m.MemberLoads {
		if inRange(l.M, len(out.Members)) {
			out.MemberLoads = append(out.MemberLoads, l)
		}
	}
	klog.Warningf("[ModelCheck] 框架尺寸不符，已按 %d层×%d跨 重新生成 (荷载移植 %d+%d)",
		dims.Layers, dims.Spans, len(out.NodeLoads), len(out.MemberLoads))
	return out.Normalize(), true
}

// DimensionsOf 从已有框架推断层数与跨数：标高行数 - 1 为层数，地面层节点数 - 1 为跨数
func DimensionsOf(m model.Model) (intent.Dimensions, bool) {
	rows := groupByElevation(m.Nodes)
	if len(rows) < 2 || rows[0].count < 2 {
		return intent.Dimensions{}, false
	}
	return intent.Dimensions{Layers: len(rows) - 1, Spans: rows[0].count - 1}, true
}

type elevationRow struct {
	y     float64
	count int
}

// groupByElevation 按 y 坐标分组并按标高升序返回，首行为地面层
func groupByElevation(nodes []model.Node) []elevationRow {
	counts := map[float64]int{}
	for _, n := range nodes {
		if !finite(n.Y) {
			continue
		}
		counts[math.Round(n.Y*1e6)/1e6]++
	}
	rows := make([]elevationRow, 0, len(counts))
	for y, c := range counts {
		rows = append(rows, elevationRow{y: y, count: c})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].y < rows[j].y })
	return rows
}
