package models

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// Role classifies a target's position in the network topology
type Role string

const (
	RoleLocal    Role = "local"
	RoleGateway  Role = "gateway"
	RoleInternet Role = "internet"
	RoleCustom   Role = "custom"
)

// Topology roles can be held by at most one target at a time.
var TopologyRoles = []Role{RoleLocal, RoleGateway, RoleInternet}

// IsTopology reports whether the role is one of the unique topology slots
func (r Role) IsTopology() bool {
	switch r {
	case RoleLocal, RoleGateway, RoleInternet:
		return true
	}
	return false
}

// Title is the display name given to a topology target created from a diagram slot
func (r Role) Title() string {
	switch r {
	case RoleLocal:
		return "You (Local)"
	case RoleGateway:
		return "Gateway"
	case RoleInternet:
		return "Internet"
	}
	return string(r)
}

// ParseRole converts a string into a Role. An empty string maps to RoleCustom.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleCustom, nil
	case RoleLocal, RoleGateway, RoleInternet, RoleCustom:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Target represents a monitored host
type Target struct {
	ID       string        `json:"id"`
	Address  string        `json:"address"`
	Name     string        `json:"name"`
	Role     Role          `json:"role"`
	Active   bool          `json:"active"`
	Interval time.Duration `json:"interval,omitempty"` // 0 uses the engine default
}

// TargetSpec describes a target to be added. Active defaults to true when nil.
type TargetSpec struct {
	ID       string
	Address  string
	Name     string
	Role     Role
	Active   *bool
	Interval time.Duration
}

// hostnameLabel matches a single RFC 1123 label
var hostnameLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// NormalizeAddress trims the address and checks that it is an IP literal or a
// syntactically valid hostname. Failures wrap ErrInvalidAddress.
func NormalizeAddress(address string) (string, error) {
	a := strings.TrimSpace(address)
	if a == "" {
		return "", fmt.Errorf("%w: address is empty", ErrInvalidAddress)
	}

	if ip := net.ParseIP(strings.Trim(a, "[]")); ip != nil {
		return ip.String(), nil
	}

	host := strings.TrimSuffix(a, ".")
	if len(host) == 0 || len(host) > 253 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	for _, label := range strings.Split(host, ".") {
		if !hostnameLabel.MatchString(label) {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
	}
	return host, nil
}
