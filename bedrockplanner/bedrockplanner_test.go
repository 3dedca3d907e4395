package bedrockplanner

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextConcatenatesTextBlocks(t *testing.T) {
	output := &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: `{"steps":`},
					&types.ContentBlockMemberText{Value: `[]}`},
				},
			},
		},
	}

	text, err := extractText(output)
	require.NoError(t, err)
	assert.Equal(t, `{"steps":[]}`, text)
}

func TestExtractTextErrorsOnMissingOutput(t *testing.T) {
	_, err := extractText(&bedrockruntime.ConverseOutput{})
	assert.Error(t, err)
}

func TestExtractTextErrorsOnEmptyContent(t *testing.T) {
	output := &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{Role: types.ConversationRoleAssistant},
		},
	}
	_, err := extractText(output)
	assert.Error(t, err)
}
