package models

import (
	"encoding/json"
	"errors"
)

type CrmStatus string

const (
	CrmStatusActive    CrmStatus = "ACTIVE"
	CrmStatusPaused    CrmStatus = "PAUSED"
	CrmStatusAtRisk    CrmStatus = "AT_RISK"
	CrmStatusCancelled CrmStatus = "CANCELLED"
)

func (s CrmStatus) IsValid() bool {
	switch s {
	case CrmStatusActive, CrmStatusPaused, CrmStatusAtRisk, CrmStatusCancelled:
		return true
	}
	return false
}

// PAUSED and CANCELLED accounts are excluded from queue classification.
func (s CrmStatus) IsSchedulable() bool {
	return s == CrmStatusActive || s == CrmStatusAtRisk
}

func (s *CrmStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("crm status must be string")
	}
	v := CrmStatus(str)
	if !v.IsValid() {
		return errors.New("invalid crm status")
	}
	*s = v
	return nil
}

type CrmPriority string

const (
	CrmPriorityNormal    CrmPriority = "NORMAL"
	CrmPriorityHighValue CrmPriority = "HIGH_VALUE"
	CrmPriorityCritical  CrmPriority = "CRITICAL"
)

func (p CrmPriority) IsValid() bool {
	switch p {
	case CrmPriorityNormal, CrmPriorityHighValue, CrmPriorityCritical:
		return true
	}
	return false
}

// Rank orders priorities for classification and assignment
// (CRITICAL > HIGH_VALUE > NORMAL). Unknown values rank lowest.
func (p CrmPriority) Rank() int {
	switch p {
	case CrmPriorityCritical:
		return 3
	case CrmPriorityHighValue:
		return 2
	case CrmPriorityNormal:
		return 1
	}
	return 0
}

func (p *CrmPriority) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("crm priority must be string")
	}
	v := CrmPriority(str)
	if !v.IsValid() {
		return errors.New("invalid crm priority")
	}
	*p = v
	return nil
}

type FollowUpTaskStatus string

const (
	FollowUpTaskStatusPending   FollowUpTaskStatus = "PENDING"
	FollowUpTaskStatusCompleted FollowUpTaskStatus = "COMPLETED"
	FollowUpTaskStatusCancelled FollowUpTaskStatus = "CANCELLED"
)

func (s FollowUpTaskStatus) IsValid() bool {
	switch s {
	case FollowUpTaskStatusPending, FollowUpTaskStatusCompleted, FollowUpTaskStatusCancelled:
		return true
	}
	return false
}

// COMPLETED and CANCELLED are terminal; no transition leaves them.
func (s FollowUpTaskStatus) IsTerminal() bool {
	return s == FollowUpTaskStatusCompleted || s == FollowUpTaskStatusCancelled
}

func (s *FollowUpTaskStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("task status must be string")
	}
	v := FollowUpTaskStatus(str)
	if !v.IsValid() {
		return errors.New("invalid task status")
	}
	*s = v
	return nil
}

type AssignmentStrategy string

const (
	AssignmentStrategyManual     AssignmentStrategy = "MANUAL"
	AssignmentStrategyRoundRobin AssignmentStrategy = "ROUND_ROBIN"
	AssignmentStrategyByPriority AssignmentStrategy = "BY_PRIORITY"
)

func (s AssignmentStrategy) IsValid() bool {
	switch s {
	case AssignmentStrategyManual, AssignmentStrategyRoundRobin, AssignmentStrategyByPriority:
		return true
	}
	return false
}

func (s *AssignmentStrategy) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("assignment strategy must be string")
	}
	v := AssignmentStrategy(str)
	if !v.IsValid() {
		return errors.New("invalid assignment strategy")
	}
	*s = v
	return nil
}

type InteractionType string

const (
	InteractionTypeCall    InteractionType = "Call"
	InteractionTypeEmail   InteractionType = "Email"
	InteractionTypeMeeting InteractionType = "Meeting"
	InteractionTypeMessage InteractionType = "Message"
	InteractionTypeVisit   InteractionType = "Visit"
	InteractionTypeOther   InteractionType = "Other"
)

func (t InteractionType) IsValid() bool {
	switch t {
	case InteractionTypeCall, InteractionTypeEmail, InteractionTypeMeeting,
		InteractionTypeMessage, InteractionTypeVisit, InteractionTypeOther:
		return true
	}
	return false
}

func (t *InteractionType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("interaction type must be string")
	}
	v := InteractionType(str)
	if !v.IsValid() {
		return errors.New("invalid interaction type")
	}
	*t = v
	return nil
}

type InteractionChannel string

const (
	InteractionChannelPhone    InteractionChannel = "Phone"
	InteractionChannelEmail    InteractionChannel = "Email"
	InteractionChannelInPerson InteractionChannel = "InPerson"
	InteractionChannelSms      InteractionChannel = "Sms"
	InteractionChannelViber    InteractionChannel = "Viber"
	InteractionChannelOther    InteractionChannel = "Other"
)

func (c InteractionChannel) IsValid() bool {
	switch c {
	case InteractionChannelPhone, InteractionChannelEmail, InteractionChannelInPerson,
		InteractionChannelSms, InteractionChannelViber, InteractionChannelOther:
		return true
	}
	return false
}

func (c *InteractionChannel) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("interaction channel must be string")
	}
	v := InteractionChannel(str)
	if !v.IsValid() {
		return errors.New("invalid interaction channel")
	}
	*c = v
	return nil
}

type InteractionOutcome string

const (
	InteractionOutcomeReached     InteractionOutcome = "Reached"
	InteractionOutcomeNoAnswer    InteractionOutcome = "NoAnswer"
	InteractionOutcomeCallback    InteractionOutcome = "Callback"
	InteractionOutcomeNotRelevant InteractionOutcome = "NotRelevant"
)

func (o InteractionOutcome) IsValid() bool {
	switch o {
	case InteractionOutcomeReached, InteractionOutcomeNoAnswer,
		InteractionOutcomeCallback, InteractionOutcomeNotRelevant:
		return true
	}
	return false
}

func (o *InteractionOutcome) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("interaction outcome must be string")
	}
	v := InteractionOutcome(str)
	if !v.IsValid() {
		return errors.New("invalid interaction outcome")
	}
	*o = v
	return nil
}

type DeviceUnitStatus string

const (
	DeviceUnitStatusAvailable DeviceUnitStatus = "AVAILABLE"
	DeviceUnitStatusIssued    DeviceUnitStatus = "ISSUED"
	DeviceUnitStatusActive    DeviceUnitStatus = "ACTIVE"
	DeviceUnitStatusDamaged   DeviceUnitStatus = "DAMAGED"
	DeviceUnitStatusReturned  DeviceUnitStatus = "RETURNED"
	DeviceUnitStatusInactive  DeviceUnitStatus = "INACTIVE"
)

func (s DeviceUnitStatus) IsValid() bool {
	switch s {
	case DeviceUnitStatusAvailable, DeviceUnitStatusIssued, DeviceUnitStatusActive,
		DeviceUnitStatusDamaged, DeviceUnitStatusReturned, DeviceUnitStatusInactive:
		return true
	}
	return false
}

// deviceUnitTransitions is the closed transition table for device units.
// RETURNED and INACTIVE are terminal.
var deviceUnitTransitions = map[DeviceUnitStatus][]DeviceUnitStatus{
	DeviceUnitStatusAvailable: {DeviceUnitStatusIssued, DeviceUnitStatusActive, DeviceUnitStatusDamaged, DeviceUnitStatusReturned},
	DeviceUnitStatusIssued:    {DeviceUnitStatusActive, DeviceUnitStatusDamaged, DeviceUnitStatusReturned},
	DeviceUnitStatusActive:    {DeviceUnitStatusDamaged, DeviceUnitStatusReturned, DeviceUnitStatusInactive},
	DeviceUnitStatusDamaged:   {DeviceUnitStatusReturned},
}

func (s DeviceUnitStatus) CanTransitionTo(next DeviceUnitStatus) bool {
	for _, allowed := range deviceUnitTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *DeviceUnitStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("device unit status must be string")
	}
	v := DeviceUnitStatus(str)
	if !v.IsValid() {
		return errors.New("invalid device unit status")
	}
	*s = v
	return nil
}

// CrmEventAction mirrors the outbox action column ('C','U','D').
type CrmEventAction string

const (
	CrmEventActionCreate CrmEventAction = "C"
	CrmEventActionUpdate CrmEventAction = "U"
	CrmEventActionDelete CrmEventAction = "D"
)

// CrmEventReferenceType identifies which record an outbox event points at.
type CrmEventReferenceType string

const (
	CrmEventReferenceTypeFollowUpTask CrmEventReferenceType = "FUT"
	CrmEventReferenceTypeAssignment   CrmEventReferenceType = "ASG"
	CrmEventReferenceTypeDeviceBatch  CrmEventReferenceType = "DVB"
	CrmEventReferenceTypeAccount      CrmEventReferenceType = "ACC"
)
