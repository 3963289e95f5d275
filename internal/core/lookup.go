package core

// Reference values of the organization's risk template. Import stores the
// workbook's own text, so these are used for display and form options only.

// StrideCategory is a STRIDE-L threat category.
type StrideCategory struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StrideCategories lists the STRIDE-L categories in template order.
var StrideCategories = []StrideCategory{
	{"S", "Spoofing", "Impersonating something or someone else"},
	{"T", "Tampering", "Modifying data or code"},
	{"R", "Repudiation", "Claiming to have not performed an action"},
	{"I", "Information Disclosure", "Exposing information to unauthorized individuals"},
	{"D", "Denial of Service", "Deny or degrade service to users"},
	{"E", "Elevation of Privilege", "Gain capabilities without proper authorization"},
	{"L", "Lateral Movement", "Moving through a network after gaining access"},
}

// StrideName returns the category name for code, or code itself when unknown.
func StrideName(code string) string {
	for _, c := range StrideCategories {
		if c.Code == code {
			return c.Name
		}
	}
	return code
}

// SeverityLevels are the template's severity references.
var SeverityLevels = []string{"2 - Minor", "3 - Serious", "4 - CRITICAL"}

// ExploitRiskLevels are the template's exploit-risk references.
var ExploitRiskLevels = []string{"1 - Low", "3 - Medium", "5 - High"}

// RiskRatings are the template's risk ratings, least severe first.
var RiskRatings = []string{"Acceptable", "Mitigation Desirable", "Remediation Required"}
