package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Role tags. A user holds a set of these; they are not mutually exclusive
// (e.g. a head of department is usually also a teacher).
const (
	// Global (cross-school)
	RoleCompanyAdmin = "company_admin"
	RoleSuperAdmin   = "super_admin"

	// School-scoped
	RoleAdmin       = "admin"
	RoleSchoolAdmin = "school_admin"
	RoleHOD         = "hod"
	RoleAccountant  = "accountant"
	RoleTeacher     = "teacher"
	RoleStudent     = "student"
)

var (
	GlobalRoles = []string{RoleCompanyAdmin, RoleSuperAdmin}
	AdminRoles  = []string{RoleCompanyAdmin, RoleSuperAdmin, RoleAdmin, RoleSchoolAdmin}
	StaffRoles  = []string{RoleHOD, RoleAccountant, RoleTeacher}
	AllRoles    = getAllRoles()

	rolePriorities = map[string]int{
		// Global admins: 40 - 31
		RoleCompanyAdmin: 40,
		RoleSuperAdmin:   39,

		// School admins: 30 - 21
		RoleAdmin:       30,
		RoleSchoolAdmin: 29,

		// Staff: 20 - 11
		RoleHOD:        20,
		RoleAccountant: 15,
		RoleTeacher:    11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Accountant", Value: RoleAccountant},
		{Name: "Head of Department", Value: RoleHOD},
		{Name: "School Admin", Value: RoleSchoolAdmin},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Super Admin", Value: RoleSuperAdmin},
		{Name: "Company Admin", Value: RoleCompanyAdmin},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 8)
	all = append(all, GlobalRoles...)
	all = append(all, RoleAdmin, RoleSchoolAdmin)
	all = append(all, StaffRoles...)
	all = append(all, RoleStudent)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	SchoolID     string    `json:"school_id"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsGlobal reports whether the user holds a cross-school role;
// global users are exempt from the school tenancy boundary.
func (u *User) IsGlobal() bool {
	return u.HasRole(RoleCompanyAdmin) || u.HasRole(RoleSuperAdmin)
}

// IsSchoolAdmin reports whether the user holds school_admin rights or above.
func (u *User) IsSchoolAdmin() bool {
	return u.HasRole(RoleSchoolAdmin) || u.HasRole(RoleAdmin) || u.IsGlobal()
}

func (u *User) IsHOD() bool {
	return u.HasRole(RoleHOD)
}

func (u *User) IsTeacher() bool {
	return u.HasRole(RoleTeacher)
}

func (u *User) IsStudent() bool {
	return u.HasRole(RoleStudent)
}

// InSchool reports whether the user may act within the given school.
// Every actor belongs to exactly one school; only global roles cross it.
func (u *User) InSchool(schoolID string) bool {
	if u.IsGlobal() {
		return true
	}
	return u.SchoolID != "" && u.SchoolID == schoolID
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	SchoolID        string   `json:"school_id" validate:"required_without=GlobalRoles"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	GlobalRoles     []string `json:"-"` // set from Roles on Validate; drives school_id requirement
}

func (nu *NewUser) Validate(svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.GlobalRoles = nil
	for _, r := range nu.Roles {
		if r == RoleCompanyAdmin || r == RoleSuperAdmin {
			nu.GlobalRoles = append(nu.GlobalRoles, r)
		}
	}

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, svc ServiceInterface) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Username, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate() error { return core.Validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	SchoolID    string    `query:"school_id"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`

	// Orderings is set by the API layer from the "ordering" query param;
	// repositories ignore fields outside their whitelist.
	Orderings []core.DBOrdering `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.SchoolID == "" && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
