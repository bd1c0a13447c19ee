package pos

import "errors"

// Role is a user's role id as stored by the data service.
type Role int

const (
	RoleAdministrator Role = 1
	RoleCashier       Role = 2
	RoleStockkeeper   Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleAdministrator:
		return "administrator"
	case RoleCashier:
		return "cashier"
	case RoleStockkeeper:
		return "stockkeeper"
	}
	return "unknown"
}

// Module is one of the feature areas of the point of sale.
type Module string

const (
	ModuleSales     Module = "sales"
	ModuleInventory Module = "inventory"
	ModuleReports   Module = "reports"
	ModuleReturns   Module = "returns"
	ModuleSettings  Module = "settings"
)

// Modules lists every module in menu order.
var Modules = []Module{ModuleSales, ModuleInventory, ModuleReports, ModuleReturns, ModuleSettings}

// ErrForbidden is returned when the user's role may not open a module.
var ErrForbidden = errors.New("pos: module not permitted for role")

var permissions = map[Role]map[Module]bool{
	RoleAdministrator: {
		ModuleSales: true, ModuleInventory: true, ModuleReports: true, ModuleReturns: true, ModuleSettings: true,
	},
	RoleCashier: {
		ModuleSales: true, ModuleReports: true,
	},
	RoleStockkeeper: {
		ModuleInventory: true,
	},
}

// Allowed reports whether role may use module. Unknown roles get nothing.
func Allowed(role Role, module Module) bool {
	return permissions[role][module]
}

// AllowedModules returns the modules role may open, in menu order.
func AllowedModules(role Role) []Module {
	var out []Module
	for _, m := range Modules {
		if Allowed(role, m) {
			out = append(out, m)
		}
	}
	return out
}
