package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/structgen/backend/config"
	"k8s.io/klog/v2"
)

// chatGenerator eino ChatModel 中本包用到的部分
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// EinoTransport 通过 eino-ext 的 OpenAI ChatModel 调用生成服务
type EinoTransport struct {
	chatModel chatGenerator
}

// NewEinoTransport 创建 eino ChatModel
func NewEinoTransport(cfg config.LLMConfig) (*EinoTransport, error) {
	klog.V(6).Infof("[EinoTransport] 创建 OpenAI ChatModel: model=%s, baseURL=%s", cfg.Model, cfg.APIURL)

	chatModel, err := openai.NewChatModel(context.Background(), einoModelConfig(cfg))
	if err != nil {
		klog.Errorf("[EinoTransport] 创建 ChatModel 失败: %v", err)
		return nil, fmt.Errorf("create eino chat model: %w", err)
	}
	return &EinoTransport{chatModel: chatModel}, nil
}

// einoModelConfig eino 没有按次设置响应格式的选项，json_object 在创建模型时固定
func einoModelConfig(cfg config.LLMConfig) *openai.ChatModelConfig {
	modelConfig := &openai.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if cfg.APIURL != "" {
		modelConfig.BaseURL = cfg.APIURL
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelConfig.MaxTokens = &maxTokens
	}
	if cfg.Temperature > 0 {
		temperature := float32(cfg.Temperature)
		modelConfig.Temperature = &temperature
	}
	return modelConfig
}

// Complete 实现 Transport
func (t *EinoTransport) Complete(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]*schema.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			messages = append(messages, schema.SystemMessage(m.Content))
		} else {
			messages = append(messages, schema.UserMessage(m.Content))
		}
	}

	resp, err := t.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}
	return resp.Content, nil
}
