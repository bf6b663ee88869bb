package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/structgen/backend/internal/pkg/validation"
)

// HandleInvocation 函数调用形式的入口：JSON 请求进，Outcome JSON 出
func (s *Service) HandleInvocation(ctx context.Context, payload []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid request payload: %w", err)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	out, err := s.ProduceModel(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}
