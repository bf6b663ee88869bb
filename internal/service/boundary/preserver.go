package boundary

import (
	"k8s.io/klog/v2"

	"github.com/structgen/backend/internal/model"
	"github.com/structgen/backend/internal/service/intent"
)

// Reconcile 编辑模式下用原模型校正新模型的边界条件，返回新值，不修改入参
//
// 未检测到边界变更意图时，按节点位置逐一恢复原边界条件（只比较两者共有的节点）。
// 检测到变更且目标为地面层时，将新模型中 y=0 的节点统一设为目标条件。
// 只与固定的原模型比较，因此重复调用结果不变。
func Reconcile(original, candidate model.Model, change intent.BoundaryChangeIntent) model.Model {
	out := candidate.Clone()

	if !change.Detected {
		restored := restore(original, &out)
		if restored > 0 {
			klog.Warningf("[Boundary] 未检测到边界变更意图，恢复了 %d 个节点的边界条件", restored)
		}
		if left := Mismatches(original, out); len(left) > 0 {
			// 最后一道保证：无条件再恢复一次
			klog.Errorf("[Boundary] 恢复后仍有 %d 处不一致，强制恢复", len(left))
			restore(original, &out)
		}
		return out
	}

	switch {
	case change.Target == intent.TargetGround && change.Resolved:
		changed := applyToGround(&out, change.NewCondition)
		klog.V(6).Infof("[Boundary] 地面层 %d 个节点设为 %s", changed, change.NewCondition)
	case change.Target == intent.TargetGround:
		klog.Warningf("[Boundary] 地面层边界变更未能识别目标条件，保留生成结果")
	default:
		// 指定节点的变更没有确定的恢复规则，保留生成结果
		klog.Warningf("[Boundary] 边界变更目标为 %s(%s)，无恢复规则，保留生成结果", change.Target, change.Description)
	}
	return out
}

// Mismatches 返回两模型共有节点中边界条件不同的 1-based 编号
func Mismatches(original, final model.Model) []int {
	var out []int
	n := min(len(original.Nodes), len(final.Nodes))
	for k := 0; k < n; k++ {
		if original.Nodes[k].S != final.Nodes[k].S {
			out = append(out, k+1)
		}
	}
	return out
}

// RestoreByPosition 拓扑改变（如框架重新生成）后按坐标而非编号恢复边界条件：
// 与原模型某节点坐标重合的节点取该节点的边界条件，其余节点保持不变
func RestoreByPosition(original, candidate model.Model) (model.Model, int) {
	out := candidate.Clone()
	restored := 0
	for k := range out.Nodes {
		for _, on := range original.Nodes {
			if !model.NearlyEqual(on.X, out.Nodes[k].X) || !model.NearlyEqual(on.Y, out.Nodes[k].Y) {
				continue
			}
			if out.Nodes[k].S != on.S {
				klog.V(6).Infof("[Boundary] 节点 %d (%.3f, %.3f): %s -> %s", k+1, on.X, on.Y, out.Nodes[k].S, on.S)
				out.Nodes[k].S = on.S
				restored++
			}
			break
		}
	}
	return out, restored
}

func restore(original model.Model, out *model.Model) int {
	n := min(len(original.Nodes), len(out.Nodes))
	restored := 0
	for k := 0; k < n; k++ {
		if out.Nodes[k].S != original.Nodes[k].S {
			klog.V(6).Infof("[Boundary] 节点 %d: %s -> %s", k+1, out.Nodes[k].S, original.Nodes[k].S)
			out.Nodes[k].S = original.Nodes[k].S
			restored++
		}
	}
	return restored
}

func applyToGround(out *model.Model, code model.BoundaryCode) int {
	changed := 0
	for k := range out.Nodes {
		if model.NearlyEqual(out.Nodes[k].Y, 0) {
			out.Nodes[k].S = code
			changed++
		}
	}
	return changed
}
