package intent

import (
	"regexp"

	"github.com/structgen/backend/internal/model"
)

// rule 规则表的一行：pattern 命中即得到 result，规则自上而下求值，先命中者生效
type rule[T any] struct {
	pattern *regexp.Regexp
	result  T
}

func firstMatch[T any](rules []rule[T], text string) (T, bool) {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.result, true
		}
	}
	var zero T
	return zero, false
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// structureRules 结构类型关键字，顺序即优先级：框架 > 梁 > 桁架
var structureRules = []rule[StructureType]{
	{regexp.MustCompile(`ラーメン|フレーム|門型|骨組|多層|層|階建|\d+\s*階|rahmen|\bframes?\b|portal|multi-?stor|\bstor(?:e)?y|stories|storeys|\bfloors?\b`), StructureFrame},
	{regexp.MustCompile(`梁|はり|ビーム|片持|\bbeams?\b|cantilever|girder`), StructureBeam},
	{regexp.MustCompile(`トラス|ワーレン|プラット|truss|warren|pratt`), StructureTruss},
}

// layerPatterns 层数的数字模式，首个成功解析的模式生效。
// “2層目”“2階に” 是序数（第几层），不计为层数；单独的 “N階” 只在 “階建” 中计数。
var layerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*層(?:[^目]|$)`),
	regexp.MustCompile(`(\d+)\s*階建`),
	regexp.MustCompile(`(\d+)[\s-]*(?:stories|story|storeys|storey|floors|floor|levels|level|layers|layer)\b`),
}

var spanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*スパン(?:[^目]|$)`),
	regexp.MustCompile(`(\d+)\s*径間(?:[^目]|$)`),
	regexp.MustCompile(`(\d+)[\s-]*(?:spans|span|bays|bay)\b`),
}

// softLayerRules / softSpanRules 未给出明确数量时的关键字默认值
var softLayerRules = []rule[int]{
	{regexp.MustCompile(`多層|高層|multi-?stor(?:e)?y|multi-?storey|high-?rise`), 4},
}

var softSpanRules = []rule[int]{
	{regexp.MustCompile(`多スパン|連スパン|multi-?span|multi-?bay`), 3},
}

const decimal = `(\d+(?:\.\d+)?)`

var trussHeightPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:高さ|桁高|せい)\s*(?:は|を|が|:|=)?\s*` + decimal + `\s*(?:m\b|メートル)`),
	regexp.MustCompile(decimal + `\s*(?:m\b|メートル)\s*の?(?:高さ|桁高)`),
	regexp.MustCompile(`(?:height|depth|rise)\s*(?:of|is|=|:)?\s*` + decimal + `\s*m\b`),
	regexp.MustCompile(decimal + `\s*m\s*(?:high|tall|deep)\b`),
}

var trussSpanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:スパン|長さ|全長|支間)\s*(?:は|を|が|:|=)?\s*` + decimal + `\s*(?:m\b|メートル)`),
	regexp.MustCompile(decimal + `\s*(?:m\b|メートル)\s*の?(?:スパン|長さ|全長|支間)`),
	regexp.MustCompile(`(?:span|length)\s*(?:of|is|=|:)?\s*` + decimal + `\s*m\b`),
	regexp.MustCompile(decimal + `\s*m\s*(?:span|long)\b`),
}

var (
	nodeLoadPatterns = []*regexp.Regexp{
		regexp.MustCompile(`集中荷重|節点荷重|水平力|水平荷重|鉛直荷重|地震力`),
		regexp.MustCompile(`point\s+loads?|concentrated|nodal\s+loads?|(?:horizontal|lateral|vertical)\s+(?:forces?|loads?)|seismic`),
	}
	memberLoadPatterns = []*regexp.Regexp{
		regexp.MustCompile(`分布荷重|等分布|部材荷重`),
		regexp.MustCompile(`distributed|uniform(?:ly)?\s+loads?|\budl\b|kn/m|line\s+loads?`),
	}
	generalLoadPatterns = []*regexp.Regexp{
		regexp.MustCompile(`荷重|外力`),
		regexp.MustCompile(`\bloads?\b|\bloaded\b|\bforces?\b`),
	}
)

var (
	boundaryVocabulary = []*regexp.Regexp{
		regexp.MustCompile(`境界条件|支点|支持|拘束|固定|ピン|ローラー|柱脚`),
		regexp.MustCompile(`boundary|supports?\b|restrain|fixed|fixity|pinned|\bpins?\b|roller|clamp`),
	}
	changeVocabulary = []*regexp.Regexp{
		regexp.MustCompile(`変更|変え|替え|にして|にする|に変|修正`),
		regexp.MustCompile(`\bchange|modify|switch|replace|convert|\bmake\b|\bturn\b|\bset\b|update`),
	}
	// coordinateVocabulary 坐标/跨度修改用语，命中时抑制边界条件变更检测
	coordinateVocabulary = []*regexp.Regexp{
		regexp.MustCompile(`座標|位置|移動|スパン長|長さ|高さ|幅|間隔|伸ば|縮め`),
		regexp.MustCompile(`coordinate|position|\bmove|\bshift|span\s*length|length|height|width|spacing|elevation|extend|stretch|resize`),
	}
)

var targetRules = []rule[BoundaryTarget]{
	{regexp.MustCompile(`地面|地盤|基礎|柱脚|脚部|最下|下端|全ての支点|すべての支点|全支点|ground|\bbases?\b|\bfoot|footing|bottom|all\s+(?:the\s+)?supports|column\s+bases?`), TargetGround},
	{regexp.MustCompile(`節点\s*\d+|\d+\s*番|指定|node\s*#?\s*\d+|specified\s+node`), TargetSpecified},
}

// conditionRules 目标边界条件。带方向的 “Xに” / “to X” 形式优先于裸关键字
var conditionRules = []rule[model.BoundaryCode]{
	{regexp.MustCompile(`ピン(?:支点|支持|接合|端|条件)?に`), model.BoundaryPinned},
	{regexp.MustCompile(`ローラー(?:支点|支持|端|条件)?に`), model.BoundaryRoller},
	{regexp.MustCompile(`固定(?:支点|支持|端|条件)?に`), model.BoundaryFixed},
	{regexp.MustCompile(`自由(?:端|条件)?に`), model.BoundaryFree},
	{regexp.MustCompile(`\b(?:to|into|as)\s+(?:an?\s+)?(?:be\s+)?(?:pinned|pins?)\b`), model.BoundaryPinned},
	{regexp.MustCompile(`\b(?:to|into|as)\s+(?:an?\s+)?(?:be\s+)?rollers?\b`), model.BoundaryRoller},
	{regexp.MustCompile(`\b(?:to|into|as)\s+(?:an?\s+)?(?:be\s+)?(?:fixed|fix)\b`), model.BoundaryFixed},
	{regexp.MustCompile(`\b(?:to|into|as)\s+(?:an?\s+)?(?:be\s+)?free\b`), model.BoundaryFree},
	{regexp.MustCompile(`ローラー|roller`), model.BoundaryRoller},
	{regexp.MustCompile(`ピン|pinned|\bpins?\b`), model.BoundaryPinned},
	{regexp.MustCompile(`固定|fixed|clamp`), model.BoundaryFixed},
	{regexp.MustCompile(`自由|\bfree\b`), model.BoundaryFree},
}
