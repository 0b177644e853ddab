package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// SystemStateENUMType system operating state ENUM
type SystemStateENUMType string

const (
	// SystemStatePreInit first time system start
	SystemStatePreInit SystemStateENUMType = "PRE_INITIALIZATION"
	// SystemStateInit system perform first time initialization
	SystemStateInit SystemStateENUMType = "INITIALIZING"
	// SystemStateRunning system running normally
	SystemStateRunning SystemStateENUMType = "RUNNING"
)

// SystemParams system operating parameters
type SystemParams struct {
	// ID param entry ID. It must always be system-parameters
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,oneof=system-parameters"`

	// State system operating state
	State SystemStateENUMType `json:"state" gorm:"column:state;not null" validate:"required,system_state"`

	// KDFParams the key derivation parameters the stored secrets were encrypted under
	KDFParams datatypes.JSON `json:"kdf_params,omitempty" gorm:"column:kdf_params;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// KDFParams key derivation parameters recorded at first start
type KDFParams struct {
	// Algorithm the KDF algorithm
	Algorithm string `json:"algorithm" validate:"required,oneof=pbkdf2-sha256"`
	// Iterations KDF iteration count
	Iterations int `json:"iterations" validate:"required,gte=100000"`
	// SaltFingerprint hex encoded fingerprint of the server salt
	SaltFingerprint string `json:"salt_fingerprint" validate:"required,hexadecimal,len=64"`
}

// ParseKDFParams parse the recorded KDF parameters
//
// Returns nil if no parameters were recorded yet.
func (p SystemParams) ParseKDFParams(validator *validator.Validate) (*KDFParams, error) {
	if len(p.KDFParams) == 0 {
		return nil, nil
	}
	var parsed KDFParams
	if err := json.Unmarshal(p.KDFParams, &parsed); err != nil {
		return nil, fmt.Errorf("KDF params parse failed [%w]", err)
	}
	if err := validator.Struct(&parsed); err != nil {
		return nil, fmt.Errorf("KDF params not valid [%w]", err)
	}
	return &parsed, nil
}

// ValidateNextState verify can transition to new state
func (p *SystemParams) ValidateNextState(newState SystemStateENUMType) error {
	statesWithTransitions := map[SystemStateENUMType]map[SystemStateENUMType]bool{
		SystemStatePreInit: {
			SystemStatePreInit: true,
			SystemStateInit:    true,
		},
		SystemStateInit: {
			SystemStateInit:    true,
			SystemStateRunning: true,
		},
		SystemStateRunning: {
			SystemStateRunning: true,
		},
	}

	availableNextStates, ok := statesWithTransitions[p.State]
	if !ok {
		return fmt.Errorf("system can't transition out of state '%s'", p.State)
	}

	if _, ok := availableNextStates[newState]; !ok {
		return fmt.Errorf("system can't transition from '%s' to '%s'", p.State, newState)
	}

	return nil
}
