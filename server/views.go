package server

import (
	"sort"
	"strings"

	"github.com/jrsteele09/academy-portal/internal/utils"
	"github.com/jrsteele09/academy-portal/session"
)

// Column is one table column, read from the backend record field Key.
type Column struct {
	Key   string
	Label string
}

// ResourceView is a read-only table over one backend listing endpoint.
type ResourceView struct {
	Slug     string
	Title    string
	Endpoint string
	Columns  []Column
}

var (
	courseColumns = []Column{
		{Key: "title", Label: "Course"},
		{Key: "category", Label: "Category"},
		{Key: "level", Label: "Level"},
		{Key: "duration", Label: "Duration"},
		{Key: "price", Label: "Price"},
	}
	workshopColumns = []Column{
		{Key: "title", Label: "Workshop"},
		{Key: "category", Label: "Category"},
		{Key: "date", Label: "Date"},
		{Key: "time", Label: "Time"},
		{Key: "location", Label: "Location"},
		{Key: "available_seats", Label: "Seats"},
	}
	registrationColumns = []Column{
		{Key: "user_name", Label: "Name"},
		{Key: "email", Label: "Email"},
		{Key: "phone", Label: "Phone"},
		{Key: "workshop_title", Label: "Workshop"},
		{Key: "registration_date", Label: "Registered"},
		{Key: "status", Label: "Status"},
	}
	studentColumns = []Column{
		{Key: "enrollment_id", Label: "Enrollment ID"},
		{Key: "user", Label: "Student"},
		{Key: "email", Label: "Email"},
		{Key: "course", Label: "Course"},
		{Key: "batch", Label: "Batch"},
		{Key: "status", Label: "Status"},
	}
	batchColumns = []Column{
		{Key: "name", Label: "Batch"},
		{Key: "course", Label: "Course"},
		{Key: "created_at", Label: "Created"},
	}
	feeStatusColumns = []Column{
		{Key: "student_name", Label: "Student"},
		{Key: "total_amount", Label: "Total"},
		{Key: "amount_paid", Label: "Paid"},
		{Key: "status", Label: "Status"},
	}
)

// roleViews lists the resource tables of each role area, in sidebar order.
var roleViews = map[string][]ResourceView{
	session.RoleAdmin: {
		{Slug: "courses", Title: "Courses", Endpoint: "courses/courses/", Columns: courseColumns},
		{Slug: "workshops", Title: "Workshops", Endpoint: "workshops/", Columns: workshopColumns},
		{Slug: "workshop-registrations", Title: "Workshop Registrations", Endpoint: "workshop-registrations/", Columns: registrationColumns},
		{Slug: "fee-structures", Title: "Fee Structures", Endpoint: "fee-structures/", Columns: []Column{
			{Key: "name", Label: "Structure"},
			{Key: "course", Label: "Course"},
			{Key: "tuition_fee", Label: "Tuition"},
			{Key: "registration_fee", Label: "Registration"},
			{Key: "total_amount", Label: "Total"},
		}},
		{Slug: "batches", Title: "Batches", Endpoint: "batches/", Columns: batchColumns},
		{Slug: "students", Title: "Students", Endpoint: "students/", Columns: studentColumns},
		{Slug: "faculty", Title: "Faculty", Endpoint: "faculty/", Columns: []Column{
			{Key: "username", Label: "Username"},
			{Key: "email", Label: "Email"},
			{Key: "specialization", Label: "Specialization"},
			{Key: "is_active", Label: "Active"},
		}},
	},
	session.RoleFaculty: {
		{Slug: "students", Title: "Students", Endpoint: "students/", Columns: studentColumns},
		{Slug: "batches", Title: "Batches", Endpoint: "batches/", Columns: batchColumns},
		{Slug: "workshop-registrations", Title: "Workshop Registrations", Endpoint: "faculty/workshop-registrations/", Columns: registrationColumns},
		{Slug: "fee-status", Title: "Student Fee Status", Endpoint: "faculty-student-fees/", Columns: feeStatusColumns},
	},
	session.RoleStudent: {
		{Slug: "enrollments", Title: "My Courses", Endpoint: "enrollments/", Columns: []Column{
			{Key: "course", Label: "Course"},
			{Key: "batch", Label: "Batch"},
			{Key: "enrolled_at", Label: "Enrolled"},
			{Key: "status", Label: "Status"},
		}},
		{Slug: "courses", Title: "Latest Courses", Endpoint: "courses/latest-courses/", Columns: courseColumns},
		{Slug: "fees", Title: "Fee Details", Endpoint: "student-fees/details/", Columns: feeStatusColumns},
		{Slug: "workshops", Title: "Workshops", Endpoint: "workshops/", Columns: workshopColumns},
	},
}

func findView(role, slug string) (ResourceView, bool) {
	for _, v := range roleViews[role] {
		if v.Slug == slug {
			return v, true
		}
	}
	return ResourceView{}, false
}

type navLink struct {
	Label  string
	Href   string
	Active bool
}

// sidebarFor builds the role sidebar, marking the link for path as active.
func sidebarFor(role, path string) []navLink {
	home := "/" + role
	links := []navLink{{Label: "Dashboard", Href: home, Active: path == home}}
	for _, v := range roleViews[role] {
		href := home + "/" + v.Slug
		links = append(links, navLink{Label: v.Title, Href: href, Active: path == href})
	}
	if role == session.RoleFaculty {
		links = append(links, navLink{Label: "Enroll Student", Href: RouteFacultyNewStudent, Active: path == RouteFacultyNewStudent})
	}
	return links
}

// detailFields picks the listed fields of record, skipping those the backend left empty.
func detailFields(record map[string]any, columns []Column) []detailField {
	fields := make([]detailField, 0, len(columns))
	for _, c := range columns {
		if value := utils.CellText(record[c.Key]); value != "" {
			fields = append(fields, detailField{Label: c.Label, Value: value})
		}
	}
	return fields
}

func firstText(record map[string]any, key, fallback string) string {
	if value := utils.CellText(record[key]); value != "" {
		return value
	}
	return fallback
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// humanize turns a backend field name such as "total_students" into "Total students".
func humanize(key string) string {
	text := strings.TrimSpace(strings.ReplaceAll(key, "_", " "))
	if text == "" {
		return ""
	}
	return strings.ToUpper(text[:1]) + text[1:]
}
