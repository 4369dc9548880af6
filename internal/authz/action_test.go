package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionNamesCoverEveryConstant(t *testing.T) {
	constants := []Action{
		ActionGlobalUpdateConfiguration,
		ActionGlobalCreateDataProduct,
		ActionGlobalCreateDataset,
		ActionGlobalRequestDataProductAccess,
		ActionGlobalRequestDatasetAccess,
		ActionGlobalCreateUser,
		ActionGlobalDeleteUser,
		ActionDataProductUpdateProperties,
		ActionDataProductUpdateSettings,
		ActionDataProductUpdateStatus,
		ActionDataProductDelete,
		ActionDataProductCreateUser,
		ActionDataProductUpdateUser,
		ActionDataProductDeleteUser,
		ActionDataProductApproveUserRequest,
		ActionDataProductCreateDataOutput,
		ActionDataProductUpdateDataOutput,
		ActionDataProductDeleteDataOutput,
		ActionDataProductRequestOutputLink,
		ActionDataProductRequestDataset,
		ActionDataProductRevokeDataset,
		ActionDataProductReadIntegrations,
		ActionDatasetUpdateProperties,
		ActionDatasetUpdateSettings,
		ActionDatasetUpdateStatus,
		ActionDatasetDelete,
		ActionDatasetCreateUser,
		ActionDatasetUpdateUser,
		ActionDatasetDeleteUser,
		ActionDatasetApproveUserRequest,
		ActionDatasetApproveOutputLinkRequest,
		ActionDatasetRevokeOutputLink,
		ActionDatasetApproveProductAccess,
		ActionDatasetRevokeProductAccess,
		ActionDatasetReadIntegrations,
	}

	assert.Len(t, actionNames, len(constants), "name map and constant block out of lock-step")
	seen := make(map[Action]bool, len(constants))
	for _, a := range constants {
		assert.True(t, a.Valid(), "constant %d missing from actionNames", int(a))
		assert.False(t, seen[a], "duplicate constant %d", int(a))
		seen[a] = true
	}
}

func TestActionNamespaceRanges(t *testing.T) {
	for a, name := range actionNames {
		switch {
		case a >= 100 && a < 200:
			assert.Regexp(t, `^GLOBAL__`, name, "action %d", int(a))
		case a >= 300 && a < 400:
			assert.Regexp(t, `^DATA_PRODUCT__`, name, "action %d", int(a))
		case a >= 400 && a < 500:
			assert.Regexp(t, `^DATASET__`, name, "action %d", int(a))
		default:
			t.Errorf("action %d outside every namespace range", int(a))
		}
	}
}

func TestParseActionRoundTrip(t *testing.T) {
	for a, name := range actionNames {
		parsed, err := ParseAction(name)
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
		assert.Equal(t, name, parsed.String())
	}
}

func TestParseActionNumeric(t *testing.T) {
	a, err := ParseAction("304")
	require.NoError(t, err)
	assert.Equal(t, ActionDataProductDelete, a)
}

func TestParseActionUnknown(t *testing.T) {
	_, err := ParseAction("GLOBAL__NO_SUCH_THING")
	assert.Error(t, err)

	_, err = ParseAction("999")
	assert.Error(t, err)
}

func TestActionStringUnknownValue(t *testing.T) {
	assert.Equal(t, "999", Action(999).String())
	assert.False(t, Action(999).Valid())
}

func TestAllActionsMatchesNameMap(t *testing.T) {
	all := AllActions()
	assert.Len(t, all, len(actionNames))
	for _, a := range all {
		assert.True(t, a.Valid())
	}
}
