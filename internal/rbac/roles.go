package rbac

// Role names carried in access tokens.
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleRecruiter  = "recruiter"
	RoleViewer     = "viewer"
	RoleSuperAdmin = "super_admin"
	RoleSupport    = "support" // hidden role
)

// Admins may run provider diagnostics for their organization.
var Admins = []string{RoleOwner, RoleAdmin}

// PlatformAdmins manage state shared by every organization, such as the
// telephony credentials and the notification attempt log.
var PlatformAdmins = []string{RoleSuperAdmin}

// CallOperators may place and schedule calls.
var CallOperators = []string{RoleOwner, RoleAdmin, RoleRecruiter}

// Readers may view an organization's calls and reports.
var Readers = []string{RoleOwner, RoleAdmin, RoleRecruiter, RoleViewer}

// AuditReaders adds platform support staff to Admins.
var AuditReaders = []string{RoleOwner, RoleAdmin, RoleSupport}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleSupport }
