package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structgen/backend/internal/model"
)

type payload struct {
	Prompt       string `binding:"required"`
	Mode         string `binding:"omitempty,oneof=new edit"`
	CurrentModel *model.Model
}

func TestValidateStruct(t *testing.T) {
	ok := payload{
		Prompt: "frame",
		Mode:   "edit",
		CurrentModel: &model.Model{Nodes: []model.Node{
			{X: 0, Y: 0, S: model.BoundaryFixed},
			{X: 0, Y: 4, S: model.BoundaryFree},
		}},
	}
	assert.NoError(t, ValidateStruct(ok))
	assert.NoError(t, ValidateStruct(payload{Prompt: "beam"}))

	err := ValidateStruct(payload{Mode: "append"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt is required")
	assert.Contains(t, err.Error(), "mode must be one of: new edit")

	bad := ok
	bad.CurrentModel = &model.Model{Nodes: []model.Node{{S: "q"}}}
	err = ValidateStruct(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currentmodel.nodes[0].s")
}

func TestRegisterGin(t *testing.T) {
	require.NoError(t, RegisterGin())
}
