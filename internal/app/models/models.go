package models

import "strings"

// AdvisingDeptNames maps recognized advising department codes to display names.
// A department code outside this map is treated as an unknown resource,
// never as an authorization failure.
var AdvisingDeptNames = map[string]string{
	"COENG": "College of Engineering",
	"LSADV": "Letters & Science Advising",
	"QCADV": "Chemistry Undergraduate Advising",
	"UWASC": "Athletic Study Center",
	"ZCEEE": "Educational Opportunity Program",
}

// IsKnownDeptCode reports whether code (case-insensitive) is a recognized
// advising department.
func IsKnownDeptCode(code string) bool {
	_, ok := AdvisingDeptNames[strings.ToUpper(code)]
	return ok
}

// DeptMembership is a principal's role flags within one department.
type DeptMembership struct {
	Code        string `json:"code"`
	Name        string `json:"name,omitempty"`
	IsAdvisor   bool   `json:"isAdvisor"`
	IsDirector  bool   `json:"isDirector"`
	IsScheduler bool   `json:"isScheduler"`
}

// Roles is the full role set of a principal, resolved once per request
// and passed explicitly into every authorization decision.
type Roles struct {
	IsAdmin         bool
	Departments     []DeptMembership
	DropInDeptCodes []string
}

// DeptCodes returns the codes of all departments the principal belongs to.
func (r Roles) DeptCodes() []string {
	codes := make([]string, 0, len(r.Departments))
	for _, d := range r.Departments {
		codes = append(codes, d.Code)
	}
	return codes
}

// Principal is the acting authenticated user for a request.
type Principal struct {
	ID    int64  `json:"id"`
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Roles Roles  `json:"-"`
}

// AdvisorIdentity is a directory snapshot of an advisor, denormalized onto
// appointments and notes at write time.
type AdvisorIdentity struct {
	ID        int64    `json:"id"`
	UID       string   `json:"uid"`
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	DeptCodes []string `json:"deptCodes"`
}
