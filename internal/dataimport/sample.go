package dataimport

import "slices"

var sampleHeaders = map[EntityType][]string{
	EntityCustomers: {"Full Name", "Email", "Phone", "Date of Birth", "Gender", "Occupation", "Annual Income"},
	EntityPolicies:  {"Policy Number", "Plan Name", "Policyholder", "Start Date", "End Date", "Premium", "Status"},
	EntityAgents:    {"Agent Code", "Name", "Email", "Phone", "Joining Date", "Status"},
}

var sampleRows = map[EntityType][]Row{
	EntityCustomers: {
		{"John Doe", "john@example.com", "+91-9876543210", "1990-01-01", "Male", "Engineer", "50000"},
		{"Jane Smith", "jane@example.com", "+91-9876543211", "1985-05-15", "Female", "Doctor", "75000"},
		{"Bob Johnson", "bob@example.com", "+91-9876543212", "1978-12-20", "Male", "Teacher", "45000"},
	},
	EntityPolicies: {
		{"POL001", "LIC Jeevan Anand", "John Doe", "2023-01-01", "2023-12-31", "5000", "Active"},
		{"POL002", "HDFC Life Plus", "Jane Smith", "2023-02-01", "2024-01-31", "7500", "Active"},
		{"POL003", "ICICI Prudential", "Bob Johnson", "2023-03-01", "2024-02-29", "4500", "Active"},
	},
	EntityAgents: {
		{"AGT001", "Rajesh Kumar", "rajesh@example.com", "+91-9876543213", "2022-01-01", "Active"},
		{"AGT002", "Priya Sharma", "priya@example.com", "+91-9876543214", "2022-02-01", "Active"},
		{"AGT003", "Amit Singh", "amit@example.com", "+91-9876543215", "2022-03-01", "Active"},
	},
}

// SampleHeaders returns the column names of the sample sheet for an entity,
// or nil for entities without one.
func SampleHeaders(entity EntityType) []string {
	return slices.Clone(sampleHeaders[entity])
}

// GenerateSampleData returns a few example rows for an entity so users can
// start from a filled-in sheet. Unknown entities yield no rows.
func GenerateSampleData(entity EntityType) []Row {
	rows := sampleRows[entity]
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}
