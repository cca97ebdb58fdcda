package enums

// UserRole distinguishes storefront customers from shop administrators.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = valueSet[UserRole]{UserRoleCustomer, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }
func (r UserRole) IsValid() bool  { return userRoles.contains(r) }

func ParseUserRole(value string) (UserRole, error) {
	return userRoles.parse("user role", value)
}
