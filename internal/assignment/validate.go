package assignment

// requiredAttrs must all be present on every assignment.
var requiredAttrs = []string{
	FieldStatus,
	FieldAssignmentType,
	FieldAssignmentRead,
	FieldLocation,
	FieldDispatcherID,
}

// optionalAttrs may be present; any key outside the required and optional
// sets is a schema violation.
var optionalAttrs = map[string]bool{
	FieldDescription:  true,
	FieldPriority:     true,
	FieldWorkOrderID:  true,
	FieldDueDate:      true,
	FieldWorkerID:     true,
	FieldAssignedDate: true,
}

// Validation error messages. Each check contributes at most one entry.
const (
	errMissingRequired = "missing required attribute fields"
	errInvalidAttrs    = "invalid attribute fields"
	errMissingGeometry = "missing geometry fields"
	errInvalidGeometry = "invalid geometry fields"
)

// Result is the outcome of validating one assignment.
type Result struct {
	Success bool
	Errors  []string
}

// Validate checks an assignment against the dispatch schema. Every failing
// check is accumulated so one pass surfaces all problems; Success is true
// iff no check failed.
func Validate(a Assignment) Result {
	var errs []string

	for _, field := range requiredAttrs {
		if _, ok := a.Attributes[field]; !ok {
			errs = append(errs, errMissingRequired)
			break
		}
	}

	required := make(map[string]bool, len(requiredAttrs))
	for _, field := range requiredAttrs {
		required[field] = true
	}
	for key := range a.Attributes {
		if !required[key] && !optionalAttrs[key] {
			errs = append(errs, errInvalidAttrs)
			break
		}
	}

	if _, ok := a.Geometry["x"]; !ok {
		errs = append(errs, errMissingGeometry)
	} else if _, ok := a.Geometry["y"]; !ok {
		errs = append(errs, errMissingGeometry)
	}

	for key := range a.Geometry {
		if key != "x" && key != "y" {
			errs = append(errs, errInvalidGeometry)
			break
		}
	}

	return Result{Success: len(errs) == 0, Errors: errs}
}
