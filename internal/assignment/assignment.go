// Package assignment builds and validates workforce assignment records in
// the dispatch service's wire shape.
package assignment

// Attribute field names, cased exactly as the dispatch service schema
// defines them. Casing mismatches are rejected by Validate, not corrected.
const (
	FieldStatus         = "status"
	FieldAssignmentType = "assignmentType"
	FieldAssignmentRead = "assignmentRead"
	FieldLocation       = "location"
	FieldDispatcherID   = "dispatcherId"
	FieldDescription    = "description"
	FieldPriority       = "priority"
	FieldWorkOrderID    = "workOrderId"
	FieldDueDate        = "dueDate"
	FieldWorkerID       = "workerId"
	FieldAssignedDate   = "assignedDate"
)

// Assignment is one record of an addFeatures batch. Attributes are a key
// value map so that optional fields signal "not applicable" by absence
// rather than a null placeholder, and so the key set itself can be
// validated against the schema.
type Assignment struct {
	Attributes map[string]any     `json:"attributes"`
	Geometry   map[string]float64 `json:"geometry"`
}

// Params carries the source values for one assignment. Zero values mean
// the upstream field was missing.
type Params struct {
	AssignmentType int
	Description    string
	Priority       int
	DueDateMS      int64
	Location       string
	WorkOrderID    string
	X              float64
	Y              float64
}

// Build constructs an assignment from source values. Pure: identical
// inputs always produce structurally identical assignments.
//
// status and assignmentRead are always 0 (unassigned, unread) and
// dispatcherId is always 0; assignment routing happens downstream.
// location is always present, even when the upstream identifier was empty.
// Optional attributes are included only when their source value is truthy:
// priority code 0 is reserved for "no priority set" and is omitted.
func Build(p Params) Assignment {
	attrs := map[string]any{
		FieldStatus:         0,
		FieldAssignmentType: p.AssignmentType,
		FieldAssignmentRead: 0,
		FieldLocation:       p.Location,
		FieldDispatcherID:   0,
	}
	if p.Description != "" {
		attrs[FieldDescription] = p.Description
	}
	if p.Priority != 0 {
		attrs[FieldPriority] = p.Priority
	}
	if p.DueDateMS != 0 {
		attrs[FieldDueDate] = p.DueDateMS
	}
	if p.WorkOrderID != "" {
		attrs[FieldWorkOrderID] = p.WorkOrderID
	}

	return Assignment{
		Attributes: attrs,
		Geometry:   map[string]float64{"x": p.X, "y": p.Y},
	}
}

// Priority returns the priority attribute and whether it is present.
func (a Assignment) Priority() (int, bool) {
	v, ok := a.Attributes[FieldPriority]
	if !ok {
		return 0, false
	}
	code, ok := v.(int)
	return code, ok
}
