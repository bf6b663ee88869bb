package generation

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/structgen/backend/config"
	"github.com/structgen/backend/internal/model"
	"github.com/structgen/backend/internal/pkg/llm"
	"github.com/structgen/backend/internal/pkg/metrics"
	"github.com/structgen/backend/internal/service/boundary"
	"github.com/structgen/backend/internal/service/intent"
	"github.com/structgen/backend/internal/service/modelcheck"
	"github.com/structgen/backend/internal/service/synthesizer"
)

type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
)

// Source 最终模型来自哪个阶段
type Source string

const (
	SourceGenerated   Source = "generated"
	SourceCorrected   Source = "corrected"
	SourceSynthesized Source = "synthesized"
	SourceFallback    Source = "fallback"
)

// 修正类型，记录在 Outcome.Corrections 与指标中
const (
	CorrectionBoundaryRestore  = "boundary_restore"
	CorrectionFrameResynthesis = "frame_resynthesis"
	CorrectionAIReprompt       = "ai_reprompt"
	CorrectionDuplicateMembers = modelcheck.CodeDuplicateMember
)

// Request 生成请求
type Request struct {
	Prompt       string       `json:"prompt" binding:"required,max=4000"`
	Mode         Mode         `json:"mode" binding:"omitempty,oneof=new edit"`
	CurrentModel *model.Model `json:"currentModel,omitempty"`
}

// Outcome 生成结果。Model 始终满足结构不变量
type Outcome struct {
	RequestID     string               `json:"requestId"`
	Model         model.Model          `json:"model"`
	Source        Source               `json:"source"`
	StructureType intent.StructureType `json:"structureType"`
	Attempts      int                  `json:"attempts"` // 调用生成服务的次数（含修正）
	Corrections   []string             `json:"corrections,omitempty"`
}

// Generator 生成服务，*llm.Client 实现该接口
type Generator interface {
	Invoke(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// HistoryRecorder 记录生成历史，失败不影响请求
type HistoryRecorder interface {
	Create(ctx context.Context, record *model.GenerationRecord) error
}

type Service struct {
	generator Generator
	history   HistoryRecorder
	metrics   *metrics.Collector
	pipeline  config.PipelineConfig
}

// NewService history 与 metrics 可以为 nil
func NewService(cfg *config.Config, generator Generator, history HistoryRecorder, m *metrics.Collector) *Service {
	return &Service{
		generator: generator,
		history:   history,
		metrics:   m,
		pipeline:  cfg.Pipeline,
	}
}

// run 单次请求的状态，各阶段只生成新值，不修改请求中的模型
type run struct {
	req         Request
	intent      intent.Intent
	calls       int
	corrections []string

	// resynthesized 框架已按尺寸重新生成，节点编号不再与原模型对应
	resynthesized bool
}

func (r *run) correct(kind string) {
	for _, c := range r.corrections {
		if c == kind {
			return
		}
	}
	r.corrections = append(r.corrections, kind)
}

// ProduceModel 生成或编辑结构模型
//
// 只有首次调用生成服务时限流/网络错误耗尽重试才返回 error；
// 其余失败都降级为确定性生成或最小模型。
func (s *Service) ProduceModel(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	req = normalizeRequest(req)
	r := &run{req: req, intent: intent.Classify(req.Prompt)}
	r.intent.Dimensions = completeDimensions(req, r.intent.Dimensions)
	out := &Outcome{RequestID: uuid.NewString(), StructureType: r.intent.StructureType}

	klog.V(6).Infof("[Generation] 开始: requestID=%s, mode=%s, type=%s", out.RequestID, req.Mode, r.intent.StructureType)

	content, err := s.invoke(ctx, r, userMessage(req, r.intent))
	var candidate model.Model
	switch {
	case err != nil && llm.IsRetryExhausted(err):
		klog.Errorf("[Generation] 生成服务不可用: requestID=%s, err=%v", out.RequestID, err)
		out.Attempts = r.calls
		elapsed := time.Since(start)
		s.metrics.RecordResult("failed", elapsed)
		s.record(ctx, out, req, nil, err, elapsed)
		return nil, err
	case err != nil:
		klog.Warningf("[Generation] 生成失败，改用确定性生成: %v", err)
		candidate, out.Source = s.synthesize(r.intent)
	default:
		parsed, perr := model.ParseModel(content)
		if perr != nil {
			klog.Warningf("[Generation] 解析生成结果失败，改用确定性生成: %v", perr)
			candidate, out.Source = s.synthesize(r.intent)
		} else {
			candidate, out.Source = parsed, SourceGenerated
		}
	}

	candidate = s.preserveBoundaries(r, candidate)

	candidate = s.validate(r, candidate)
	if fixed, changed := s.fixFrame(r, candidate); changed {
		candidate = fixed
		r.resynthesized = true
		r.correct(CorrectionFrameResynthesis)
		if out.Source == SourceGenerated {
			out.Source = SourceSynthesized
		}
	}

	if corrected, ok := s.correctStructure(ctx, r, candidate); ok {
		candidate = corrected
		out.Source = SourceCorrected
	}

	// 重新生成或修正可能改写边界条件，编辑模式最后再恢复一次
	candidate = s.preserveBoundaries(r, candidate)

	candidate, removed := modelcheck.RemoveDuplicateMembers(candidate)
	if removed > 0 {
		r.correct(CorrectionDuplicateMembers)
	}

	out.Model = candidate.Normalize()
	out.Attempts = r.calls
	out.Corrections = r.corrections
	for _, c := range r.corrections {
		s.metrics.RecordCorrection(c)
	}
	elapsed := time.Since(start)
	s.metrics.RecordResult(string(out.Source), elapsed)
	s.record(ctx, out, req, &out.Model, nil, elapsed)

	klog.V(6).Infof("[Generation] 完成: requestID=%s, source=%s, nodes=%d, members=%d, corrections=%v, elapsed=%v",
		out.RequestID, out.Source, len(out.Model.Nodes), len(out.Model.Members), out.Corrections, elapsed)
	return out, nil
}

func normalizeRequest(req Request) Request {
	req.Mode = Mode(strings.ToLower(strings.TrimSpace(string(req.Mode))))
	if req.Mode == "" {
		req.Mode = ModeNew
	}
	if req.Mode == ModeEdit && (req.CurrentModel == nil || len(req.CurrentModel.Nodes) == 0) {
		klog.Warningf("[Generation] 编辑模式缺少当前模型，按新建处理")
		req.Mode = ModeNew
		req.CurrentModel = nil
	}
	if req.CurrentModel != nil {
		cm := req.CurrentModel.Clone()
		req.CurrentModel = &cm
	}
	return req
}

// invoke 已调用次数达到 SimplifyAfter 后使用精简提示词
func (s *Service) invoke(ctx context.Context, r *run, user string) (string, error) {
	simplified := r.calls >= s.pipeline.SimplifyAfter && s.pipeline.SimplifyAfter > 0
	r.calls++
	return s.generator.Invoke(ctx, systemPrompt(r.intent, simplified), user)
}

// synthesize 框架与桁架按识别出的尺寸确定性生成，其余类型使用最小模型
func (s *Service) synthesize(in intent.Intent) (model.Model, Source) {
	switch in.StructureType {
	case intent.StructureFrame:
		return synthesizer.SynthesizeFrame(in.Dimensions.Layers, in.Dimensions.Spans), SourceSynthesized
	case intent.StructureTruss:
		return synthesizer.SynthesizeTruss(in.Truss.Height, in.Truss.SpanLength), SourceSynthesized
	}
	return synthesizer.MinimalModel(), SourceFallback
}

// completeDimensions 编辑模式下提示词只给出一项尺寸时，另一项取自当前模型
func completeDimensions(req Request, dims intent.Dimensions) intent.Dimensions {
	if req.Mode != ModeEdit || !dims.Explicit || (dims.LayersStated && dims.SpansStated) {
		return dims
	}
	current, ok := modelcheck.DimensionsOf(*req.CurrentModel)
	if !ok {
		return dims
	}
	if !dims.LayersStated {
		dims.Layers = current.Layers
	}
	if !dims.SpansStated {
		dims.Spans = current.Spans
	}
	klog.V(6).Infof("[Generation] 编辑模式尺寸按当前模型补全: layers=%d spans=%d", dims.Layers, dims.Spans)
	return dims
}

func (s *Service) preserveBoundaries(r *run, candidate model.Model) model.Model {
	if r.req.Mode != ModeEdit {
		return candidate
	}
	original := *r.req.CurrentModel
	if r.resynthesized && !r.intent.BoundaryChange.Detected {
		restored, n := boundary.RestoreByPosition(original, candidate)
		if n > 0 {
			r.correct(CorrectionBoundaryRestore)
		}
		return restored
	}
	if !r.intent.BoundaryChange.Detected && len(boundary.Mismatches(original, candidate)) > 0 {
		r.correct(CorrectionBoundaryRestore)
	}
	return boundary.Reconcile(original, candidate, r.intent.BoundaryChange)
}

// validate 校验并修复，记录修复过的问题类型
func (s *Service) validate(r *run, candidate model.Model) model.Model {
	res := modelcheck.Validate(candidate)
	if res.Valid {
		return candidate
	}
	codes := make(map[string]struct{})
	for _, is := range res.Issues {
		codes[is.Code] = struct{}{}
	}
	sorted := make([]string, 0, len(codes))
	for c := range codes {
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)
	for _, c := range sorted {
		r.correct(c)
	}
	klog.V(6).Infof("[Generation] 模型校验发现 %d 个问题: %v", len(res.Issues), sorted)
	return modelcheck.Fix(candidate)
}

// fixFrame 新建模式或编辑时明确给出尺寸时，框架按层数/跨数校验
func (s *Service) fixFrame(r *run, candidate model.Model) (model.Model, bool) {
	if r.intent.StructureType != intent.StructureFrame {
		return candidate, false
	}
	dims := r.intent.Dimensions
	if r.req.Mode == ModeEdit && !dims.Explicit {
		return candidate, false
	}
	if !modelcheck.Applicable(dims) {
		return candidate, false
	}
	return modelcheck.FixFrameDimensions(candidate, dims)
}

// correctStructure 桁架/梁宽松校验失败时重新提示一次；只有调用成功且可解析才采用
func (s *Service) correctStructure(ctx context.Context, r *run, candidate model.Model) (model.Model, bool) {
	if !s.pipeline.CorrectionEnabled {
		return candidate, false
	}
	t := r.intent.StructureType
	if t != intent.StructureTruss && t != intent.StructureBeam {
		return candidate, false
	}
	res := modelcheck.CheckStructure(candidate, t)
	if res.Valid {
		return candidate, false
	}
	klog.V(6).Infof("[Generation] %s 结构检查未通过 (%d 项)，重新提示", t, len(res.Issues))

	content, err := s.invoke(ctx, r, correctionPrompt(r.req, res, candidate))
	if err != nil {
		klog.Warningf("[Generation] 修正调用失败，保留原模型: %v", err)
		return candidate, false
	}
	parsed, err := model.ParseModel(content)
	if err != nil {
		klog.Warningf("[Generation] 修正结果解析失败，保留原模型: %v", err)
		return candidate, false
	}
	r.correct(CorrectionAIReprompt)
	return s.validate(r, parsed), true
}

// record 历史记录为尽力而为
func (s *Service) record(ctx context.Context, out *Outcome, req Request, m *model.Model, genErr error, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	rec := &model.GenerationRecord{
		RequestID:     out.RequestID,
		Prompt:        req.Prompt,
		Mode:          string(req.Mode),
		StructureType: string(out.StructureType),
		Source:        string(out.Source),
		Status:        "succeeded",
		Attempts:      out.Attempts,
		Corrections:   strings.Join(out.Corrections, ","),
		DurationMs:    elapsed.Milliseconds(),
	}
	if m != nil {
		rec.NodeCount = len(m.Nodes)
		rec.MemberCount = len(m.Members)
	}
	if genErr != nil {
		rec.Status = "failed"
		rec.ErrorMsg = truncate(genErr.Error(), 1000)
	}
	if err := s.history.Create(context.WithoutCancel(ctx), rec); err != nil {
		klog.Warningf("[Generation] 记录生成历史失败: requestID=%s, err=%v", out.RequestID, err)
	}
}

// truncate 按字符截断，不拆分多字节字符
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
