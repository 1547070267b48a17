package models

import "errors"

var (
	// ErrInvalidAddress is returned when a target address is empty or malformed
	ErrInvalidAddress = errors.New("invalid address")
	// ErrNotFound is returned when an operation references an unknown target id
	ErrNotFound = errors.New("target not found")
	// ErrRoleConflict is returned when a topology role is already held by another target
	ErrRoleConflict = errors.New("topology role already assigned")
	// ErrIDSpace is returned when no unique target id could be generated
	ErrIDSpace = errors.New("target id space exhausted")
	// ErrInvalidSetting is returned when a runtime setting is out of range
	ErrInvalidSetting = errors.New("invalid setting")
)
