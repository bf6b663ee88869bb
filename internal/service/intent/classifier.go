package intent

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
	"k8s.io/klog/v2"

	"github.com/structgen/backend/internal/model"
)

// StructureType 结构类型
type StructureType string

const (
	StructureFrame StructureType = "frame"
	StructureBeam  StructureType = "beam"
	StructureTruss StructureType = "truss"
	StructureBasic StructureType = "basic"
)

// Dimensions 规则框架的层数与跨数
type Dimensions struct {
	Layers int `json:"layers"`
	Spans  int `json:"spans"`
	// Explicit 是否由提示词中的数字明确给出（而非默认值）
	Explicit bool `json:"explicit"`
	// LayersStated / SpansStated 分别记录哪一项是明确给出的
	LayersStated bool `json:"layersStated"`
	SpansStated  bool `json:"spansStated"`
}

// TrussDimensions 桁架的物理尺寸（米）
type TrussDimensions struct {
	Height     float64 `json:"height"`
	SpanLength float64 `json:"spanLength"`
}

const (
	DefaultTrussHeight = 3.0
	DefaultTrussSpan   = 15.0
)

type LoadKind string

const (
	LoadNone   LoadKind = "none"
	LoadNode   LoadKind = "node"
	LoadMember LoadKind = "member"
	LoadBoth   LoadKind = "both"
)

// LoadIntent 只决定提示词要求输出空荷载数组还是推断荷载
type LoadIntent struct {
	Requested bool     `json:"requested"`
	Kind      LoadKind `json:"kind"`
}

type BoundaryTarget string

const (
	TargetGround      BoundaryTarget = "ground"
	TargetSpecified   BoundaryTarget = "specified"
	TargetUnspecified BoundaryTarget = "unspecified"
)

// BoundaryChangeIntent 编辑模式下用户是否有意修改边界条件
type BoundaryChangeIntent struct {
	Detected     bool               `json:"detected"`
	Target       BoundaryTarget     `json:"target,omitempty"`
	Description  string             `json:"description,omitempty"`
	NewCondition model.BoundaryCode `json:"newCondition,omitempty"`
	// Resolved 为 false 表示未能识别目标边界条件
	Resolved bool `json:"resolved"`
}

// Intent 提示词分类结果
type Intent struct {
	StructureType  StructureType        `json:"structureType"`
	Dimensions     Dimensions           `json:"dimensions"`
	Truss          TrussDimensions      `json:"truss"`
	Load           LoadIntent           `json:"load"`
	BoundaryChange BoundaryChangeIntent `json:"boundaryChange"`
}

// Classify 对提示词做结构类型、尺寸、荷载与边界变更意图的识别
func Classify(prompt string) Intent {
	text := normalize(prompt)
	in := Intent{
		StructureType:  ClassifyStructure(text),
		Dimensions:     ExtractDimensions(text),
		Truss:          ExtractTrussDimensions(text),
		Load:           DetectLoadIntent(text),
		BoundaryChange: DetectBoundaryChange(text),
	}
	klog.V(6).Infof("[Classifier] type=%s layers=%d spans=%d truss=%.2fx%.2f load=%s boundaryChange=%v",
		in.StructureType, in.Dimensions.Layers, in.Dimensions.Spans,
		in.Truss.Height, in.Truss.SpanLength, in.Load.Kind, in.BoundaryChange.Detected)
	return in
}

// normalize 全角数字与字母转半角并小写，规则表只需处理一种写法
func normalize(prompt string) string {
	return strings.ToLower(width.Fold.String(prompt))
}

// ClassifyStructure 按规则顺序返回首个命中的结构类型
func ClassifyStructure(prompt string) StructureType {
	if t, ok := firstMatch(structureRules, normalize(prompt)); ok {
		return t
	}
	return StructureBasic
}

// ExtractDimensions 提取层数与跨数，缺省为 1
func ExtractDimensions(prompt string) Dimensions {
	text := normalize(prompt)
	layers, layersFound := extractCount(layerPatterns, text)
	spans, spansFound := extractCount(spanPatterns, text)

	dims := Dimensions{
		Layers:       1,
		Spans:        1,
		Explicit:     layersFound || spansFound,
		LayersStated: layersFound,
		SpansStated:  spansFound,
	}
	if layersFound {
		dims.Layers = layers
	}
	if spansFound {
		dims.Spans = spans
	}

	if !layersFound && !spansFound {
		if n, ok := firstMatch(softLayerRules, text); ok {
			dims.Layers = n
		}
		if n, ok := firstMatch(softSpanRules, text); ok {
			dims.Spans = n
		}
	}
	return dims
}

func extractCount(patterns []*regexp.Regexp, text string) (int, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		return n, true
	}
	return 0, false
}

// ExtractTrussDimensions 提取桁架高度与跨长，未命中时使用默认值
func ExtractTrussDimensions(prompt string) TrussDimensions {
	text := normalize(prompt)
	dims := TrussDimensions{Height: DefaultTrussHeight, SpanLength: DefaultTrussSpan}
	if v, ok := extractMeters(trussHeightPatterns, text); ok {
		dims.Height = v
	}
	if v, ok := extractMeters(trussSpanPatterns, text); ok {
		dims.SpanLength = v
	}
	return dims
}

func extractMeters(patterns []*regexp.Regexp, text string) (float64, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 {
			continue
		}
		return v, true
	}
	return 0, false
}

// DetectLoadIntent 荷载意图的粗分类
func DetectLoadIntent(prompt string) LoadIntent {
	text := normalize(prompt)
	node := anyMatch(nodeLoadPatterns, text)
	member := anyMatch(memberLoadPatterns, text)

	switch {
	case node && member:
		return LoadIntent{Requested: true, Kind: LoadBoth}
	case node:
		return LoadIntent{Requested: true, Kind: LoadNode}
	case member:
		return LoadIntent{Requested: true, Kind: LoadMember}
	case anyMatch(generalLoadPatterns, text):
		return LoadIntent{Requested: true, Kind: LoadBoth}
	}
	return LoadIntent{Requested: false, Kind: LoadNone}
}

// DetectBoundaryChange 需同时命中边界用语与变更用语，且未命中坐标/跨度变更用语
func DetectBoundaryChange(prompt string) BoundaryChangeIntent {
	text := normalize(prompt)
	if !anyMatch(boundaryVocabulary, text) || !anyMatch(changeVocabulary, text) {
		return BoundaryChangeIntent{}
	}
	if anyMatch(coordinateVocabulary, text) {
		klog.V(6).Infof("[Classifier] 坐标变更用语优先，忽略边界条件变更")
		return BoundaryChangeIntent{}
	}

	out := BoundaryChangeIntent{Detected: true, Target: TargetUnspecified}
	for _, r := range targetRules {
		if loc := r.pattern.FindString(text); loc != "" {
			out.Target = r.result
			out.Description = loc
			break
		}
	}
	if code, ok := firstMatch(conditionRules, text); ok {
		out.NewCondition = code
		out.Resolved = true
	}
	return out
}
