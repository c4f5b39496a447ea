package model

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Employee struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TaxID    string `json:"identification,omitempty"`
	PinCode  string `json:"pin_code,omitempty"`
	JobTitle string `json:"job_title,omitempty"`
}

// Directory is a snapshot of the upstream employee directory together with
// the bearer token the ERP accepts. An empty Token means the snapshot is
// unusable for ERP calls.
type Directory struct {
	Token  string
	Roster []Employee
}

func (d Directory) Available() bool {
	return d.Token != ""
}

// FindByCode resolves an employee by PIN code. Codes are compared trimmed.
func (d Directory) FindByCode(code string) (Employee, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Employee{}, false
	}
	for _, e := range d.Roster {
		if strings.TrimSpace(e.PinCode) == code {
			return e, true
		}
	}
	return Employee{}, false
}

// Resolve maps a bot requester to a roster entry. The directory stores the
// requester id as the employee PIN; when no PIN matches, the submitted
// employee name is compared ignoring case, accents and spacing.
func (d Directory) Resolve(requesterID *int64, employeeName string) (Employee, bool) {
	if requesterID != nil {
		if e, ok := d.FindByCode(strconv.FormatInt(*requesterID, 10)); ok {
			return e, true
		}
	}
	name := NormalizeName(employeeName)
	if name == "" {
		return Employee{}, false
	}
	for _, e := range d.Roster {
		if NormalizeName(e.Name) == name {
			return e, true
		}
	}
	return Employee{}, false
}

func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
