package models

import "errors"

// CRM engine failure taxonomy. Callers branch on these with errors.Is;
// integrity errors wrap the offending value via fmt.Errorf("%w: ...").
var (
	// configuration
	ErrorInvalidCadenceConfig = errors.New("invalid cadence config")

	// preconditions
	ErrorInvalidAssignee          = errors.New("invalid assignee")
	ErrorInteractionNotesRequired = errors.New("interaction notes are required")
	ErrorEmptyOwnerPool           = errors.New("owner pool is empty")
	ErrorNoEligibleAccounts       = errors.New("no eligible accounts to assign")

	// integrity
	ErrorQuantityMismatch        = errors.New("unit count does not match declared quantity")
	ErrorDuplicateUnitIdentifier = errors.New("duplicate unit identifier")
	ErrorInvalidStatusTransition = errors.New("invalid status transition")

	// concurrency / state
	ErrorTaskAlreadyTerminal  = errors.New("task is already terminal")
	ErrorAccountNotUnassigned = errors.New("account is no longer unassigned")
)
