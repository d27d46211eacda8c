package policy

import (
	"fmt"

	"github.com/CodeXPrim8/BU/internal/account"
)

// Mode is the active surface a client is operating in.
type Mode string

const (
	ModeGuest     Mode = "guest-mode"
	ModeCelebrant Mode = "celebrant-mode"
	ModeVendor    Mode = "vendor-mode"
)

// Action is a ledger-consuming client action the gate arbitrates.
type Action string

const (
	ActionViewWallet   Action = "view_wallet"
	ActionViewHistory  Action = "view_history"
	ActionTopUp        Action = "topup"
	ActionSend         Action = "send"
	ActionReceive      Action = "receive"
	ActionSpray        Action = "spray"
	ActionRedeem       Action = "redeem"
	ActionPurchase     Action = "purchase"
	ActionVendorSale   Action = "vendor_sale"
	ActionBuyback      Action = "buyback"
	ActionGatewaySetup Action = "gateway_setup"
)

// RoleClass groups roles for table lookup. The class a role falls into
// depends on the active mode: combined acts as a participant in guest and
// celebrant modes and as a vendor in vendor mode.
type RoleClass string

const (
	ClassParticipant RoleClass = "participant"
	ClassVendorOnly  RoleClass = "vendor_only"
	ClassAdmin       RoleClass = "admin"
)

// ActionSet is a whitelist of actions.
type ActionSet map[Action]bool

var modes = []Mode{ModeGuest, ModeCelebrant, ModeVendor}

var classes = []RoleClass{ClassParticipant, ClassVendorOnly, ClassAdmin}

// table is the static (mode, role-class) -> allowed-action whitelist.
// Pure vendors get no guest or celebrant surface; admin roles observe but do
// not spend.
var table = map[Mode]map[RoleClass]ActionSet{
	ModeGuest: {
		ClassParticipant: set(ActionViewWallet, ActionViewHistory, ActionTopUp, ActionSend,
			ActionReceive, ActionSpray, ActionRedeem, ActionPurchase),
		ClassVendorOnly: set(),
		ClassAdmin:      set(),
	},
	ModeCelebrant: {
		ClassParticipant: set(ActionViewWallet, ActionViewHistory, ActionRedeem),
		ClassVendorOnly:  set(),
		ClassAdmin:       set(),
	},
	ModeVendor: {
		ClassParticipant: set(),
		ClassVendorOnly: set(ActionViewWallet, ActionViewHistory, ActionVendorSale,
			ActionBuyback, ActionSpray, ActionGatewaySetup),
		ClassAdmin: set(),
	},
}

func set(actions ...Action) ActionSet {
	s := make(ActionSet, len(actions))
	for _, a := range actions {
		s[a] = true
	}
	return s
}

// Validate proves the table total: every (mode, role-class) pair must have a
// defined answer. Called at startup.
func Validate() error {
	for _, m := range modes {
		byClass, ok := table[m]
		if !ok {
			return fmt.Errorf("policy table missing mode %s", m)
		}
		for _, c := range classes {
			if _, ok := byClass[c]; !ok {
				return fmt.Errorf("policy table missing (%s, %s)", m, c)
			}
		}
	}
	return nil
}

// ClassFor resolves the role class active under the given mode.
func ClassFor(mode Mode, role account.Role) RoleClass {
	switch role {
	case account.RoleAdmin, account.RoleSuperAdmin:
		return ClassAdmin
	}
	if mode == ModeVendor {
		if role.CanVend() {
			return ClassVendorOnly
		}
		return ClassParticipant
	}
	if role == account.RoleVendor {
		return ClassVendorOnly
	}
	return ClassParticipant
}

// Allows reports whether the role may invoke the action in the given mode.
func Allows(mode Mode, role account.Role, action Action) bool {
	byClass, ok := table[mode]
	if !ok {
		return false
	}
	return byClass[ClassFor(mode, role)][action]
}

// EnterMode applies the mode transition rule: vendor-mode is only open to
// roles with vendor privileges. Any disallowed or unknown request forces the
// client back to guest-mode, flagged so it can redirect to the default
// surface.
func EnterMode(role account.Role, requested Mode) (Mode, bool) {
	switch requested {
	case ModeGuest, ModeCelebrant:
		return requested, false
	case ModeVendor:
		if role.CanVend() {
			return ModeVendor, false
		}
		return ModeGuest, true
	default:
		return ModeGuest, true
	}
}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGuest, ModeCelebrant, ModeVendor:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}
