package fieldgate

// Module is a business area whose fields are governed, e.g. cost vouchers.
type Module struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// Governed module codes.
const (
	ModuleCustomers   = "qlkh"
	ModuleCostVoucher = "qlcp"
	ModuleEmployees   = "qlns"
	ModuleDashboard   = "dashboard"
)

// DefaultModules returns the modules governed out of the box.
func DefaultModules() []Module {
	return []Module{
		{Code: ModuleCustomers, Name: "Customers"},
		{Code: ModuleCostVoucher, Name: "Cost vouchers"},
		{Code: ModuleEmployees, Name: "Employees"},
		{Code: ModuleDashboard, Name: "Dashboard"},
	}
}
