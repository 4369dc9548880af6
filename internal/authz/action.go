package authz

import (
	"fmt"
	"strconv"
)

// Action is a fine-grained permission, namespaced by the resource type it
// applies to. Values are stable integers: the number is what gets persisted
// in role permission sets and policy rows, so renumbering is a breaking
// change. Ranges: 1xx global, 3xx data product, 4xx dataset.
type Action int

const (
	ActionGlobalUpdateConfiguration      Action = 101
	ActionGlobalCreateDataProduct        Action = 102
	ActionGlobalCreateDataset            Action = 103
	ActionGlobalRequestDataProductAccess Action = 104
	ActionGlobalRequestDatasetAccess     Action = 105
	ActionGlobalCreateUser               Action = 106
	ActionGlobalDeleteUser               Action = 107

	ActionDataProductUpdateProperties   Action = 301
	ActionDataProductUpdateSettings     Action = 302
	ActionDataProductUpdateStatus       Action = 303
	ActionDataProductDelete             Action = 304
	ActionDataProductCreateUser         Action = 305
	ActionDataProductUpdateUser         Action = 306
	ActionDataProductDeleteUser         Action = 307
	ActionDataProductApproveUserRequest Action = 308
	ActionDataProductCreateDataOutput   Action = 309
	ActionDataProductUpdateDataOutput   Action = 310
	ActionDataProductDeleteDataOutput   Action = 311
	ActionDataProductRequestOutputLink  Action = 312
	ActionDataProductRequestDataset     Action = 313
	ActionDataProductRevokeDataset      Action = 314
	ActionDataProductReadIntegrations   Action = 315

	ActionDatasetUpdateProperties         Action = 401
	ActionDatasetUpdateSettings           Action = 402
	ActionDatasetUpdateStatus             Action = 403
	ActionDatasetDelete                   Action = 404
	ActionDatasetCreateUser               Action = 405
	ActionDatasetUpdateUser               Action = 406
	ActionDatasetDeleteUser               Action = 407
	ActionDatasetApproveUserRequest       Action = 408
	ActionDatasetApproveOutputLinkRequest Action = 409
	ActionDatasetRevokeOutputLink         Action = 410
	ActionDatasetApproveProductAccess     Action = 411
	ActionDatasetRevokeProductAccess      Action = 412
	ActionDatasetReadIntegrations         Action = 413
)

// actionNames is the single source of truth tying every Action value to its
// wire name. Tests verify it stays in lock-step with the constant block.
var actionNames = map[Action]string{
	ActionGlobalUpdateConfiguration:      "GLOBAL__UPDATE_CONFIGURATION",
	ActionGlobalCreateDataProduct:        "GLOBAL__CREATE_DATAPRODUCT",
	ActionGlobalCreateDataset:            "GLOBAL__CREATE_DATASET",
	ActionGlobalRequestDataProductAccess: "GLOBAL__REQUEST_DATAPRODUCT_ACCESS",
	ActionGlobalRequestDatasetAccess:     "GLOBAL__REQUEST_DATASET_ACCESS",
	ActionGlobalCreateUser:               "GLOBAL__CREATE_USER",
	ActionGlobalDeleteUser:               "GLOBAL__DELETE_USER",

	ActionDataProductUpdateProperties:   "DATA_PRODUCT__UPDATE_PROPERTIES",
	ActionDataProductUpdateSettings:     "DATA_PRODUCT__UPDATE_SETTINGS",
	ActionDataProductUpdateStatus:       "DATA_PRODUCT__UPDATE_STATUS",
	ActionDataProductDelete:             "DATA_PRODUCT__DELETE",
	ActionDataProductCreateUser:         "DATA_PRODUCT__CREATE_USER",
	ActionDataProductUpdateUser:         "DATA_PRODUCT__UPDATE_USER",
	ActionDataProductDeleteUser:         "DATA_PRODUCT__DELETE_USER",
	ActionDataProductApproveUserRequest: "DATA_PRODUCT__APPROVE_USER_REQUEST",
	ActionDataProductCreateDataOutput:   "DATA_PRODUCT__CREATE_DATA_OUTPUT",
	ActionDataProductUpdateDataOutput:   "DATA_PRODUCT__UPDATE_DATA_OUTPUT",
	ActionDataProductDeleteDataOutput:   "DATA_PRODUCT__DELETE_DATA_OUTPUT",
	ActionDataProductRequestOutputLink:  "DATA_PRODUCT__REQUEST_DATA_OUTPUT_LINK",
	ActionDataProductRequestDataset:     "DATA_PRODUCT__REQUEST_DATASET_ACCESS",
	ActionDataProductRevokeDataset:      "DATA_PRODUCT__REVOKE_DATASET_ACCESS",
	ActionDataProductReadIntegrations:   "DATA_PRODUCT__READ_INTEGRATIONS",

	ActionDatasetUpdateProperties:         "DATASET__UPDATE_PROPERTIES",
	ActionDatasetUpdateSettings:           "DATASET__UPDATE_SETTINGS",
	ActionDatasetUpdateStatus:             "DATASET__UPDATE_STATUS",
	ActionDatasetDelete:                   "DATASET__DELETE",
	ActionDatasetCreateUser:               "DATASET__CREATE_USER",
	ActionDatasetUpdateUser:               "DATASET__UPDATE_USER",
	ActionDatasetDeleteUser:               "DATASET__DELETE_USER",
	ActionDatasetApproveUserRequest:       "DATASET__APPROVE_USER_REQUEST",
	ActionDatasetApproveOutputLinkRequest: "DATASET__APPROVE_DATA_OUTPUT_LINK_REQUEST",
	ActionDatasetRevokeOutputLink:         "DATASET__REVOKE_DATA_OUTPUT_LINK",
	ActionDatasetApproveProductAccess:     "DATASET__APPROVE_DATAPRODUCT_ACCESS_REQUEST",
	ActionDatasetRevokeProductAccess:      "DATASET__REVOKE_DATAPRODUCT_ACCESS",
	ActionDatasetReadIntegrations:         "DATASET__READ_INTEGRATIONS",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, name := range actionNames {
		m[name] = a
	}
	return m
}()

// Valid reports whether a is a member of the closed enumeration.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// String returns the canonical wire name, or the decimal value for unknown actions.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return strconv.Itoa(int(a))
}

// ParseAction accepts either the canonical name or the decimal value.
func ParseAction(s string) (Action, error) {
	if a, ok := actionsByName[s]; ok {
		return a, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("authz: unknown action %q", s)
	}
	a := Action(n)
	if !a.Valid() {
		return 0, fmt.Errorf("authz: unknown action %d", n)
	}
	return a, nil
}

// AllActions returns every member of the enumeration, unordered.
func AllActions() []Action {
	out := make([]Action, 0, len(actionNames))
	for a := range actionNames {
		out = append(out, a)
	}
	return out
}
