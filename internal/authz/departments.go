package authz

// The department label table is owned here and injected wherever scoping is
// needed; handlers and stores never carry their own copy.
var departmentLabels = map[string]string{
	"roads_infrastructure": "Roads & Infrastructure",
	"sanitation":           "Sanitation",
	"water_supply":         "Water Supply",
	"street_lighting":      "Street Lighting",
	"parks_recreation":     "Parks & Recreation",
	"public_transit":       "Public Transit",
}

var departmentKeys = func() map[string]string {
	m := make(map[string]string, len(departmentLabels))
	for key, label := range departmentLabels {
		m[label] = key
	}
	return m
}()

// DepartmentLabel translates a department key to its display label.
func DepartmentLabel(key string) (string, bool) {
	label, ok := departmentLabels[key]
	return label, ok
}

// DepartmentKey is the reverse lookup from display label to key.
func DepartmentKey(label string) (string, bool) {
	key, ok := departmentKeys[label]
	return key, ok
}

// Departments returns every known department key. Order is unspecified.
func Departments() []string {
	keys := make([]string, 0, len(departmentLabels))
	for key := range departmentLabels {
		keys = append(keys, key)
	}
	return keys
}
