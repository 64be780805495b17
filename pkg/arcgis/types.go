package arcgis

import (
	"encoding/json"
	"fmt"
)

// Feature is one record of a query response. Geometry stays raw; layers
// differ in geometry type and callers decode it against the response's
// GeometryType discriminator.
type Feature struct {
	Attributes map[string]any  `json:"attributes"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
}

// QueryResponse is the parsed body of a layer query.
type QueryResponse struct {
	Features     []Feature     `json:"features"`
	GeometryType string        `json:"geometryType,omitempty"`
	Error        *ServiceError `json:"error,omitempty"`
}

// AddResponse is the parsed body of an addFeatures call. AddResults is
// positionally correlated with the submitted batch; the service preserves
// order even for partial failures.
type AddResponse struct {
	AddResults []AddResult   `json:"addResults"`
	Error      *ServiceError `json:"error,omitempty"`
}

// AddResult is the outcome for one submitted feature.
type AddResult struct {
	ObjectID int64        `json:"objectId"`
	Success  bool         `json:"success"`
	Error    *ResultError `json:"error,omitempty"`
}

// ResultError is the per-feature error detail of a failed add.
type ResultError struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// AttachmentInfo describes one attachment on a source record.
type AttachmentInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// attachmentsResponse is the body of a <layer>/<oid>/attachments query.
type attachmentsResponse struct {
	AttachmentInfos []AttachmentInfo `json:"attachmentInfos"`
	Error           *ServiceError    `json:"error,omitempty"`
}

// addAttachmentResponse is the body of an addAttachment call.
type addAttachmentResponse struct {
	Result *struct {
		ObjectID int64 `json:"objectId"`
		Success  bool  `json:"success"`
	} `json:"addAttachmentResult"`
	Error *ServiceError `json:"error,omitempty"`
}

// tokenResponse is the body of a generateToken call.
type tokenResponse struct {
	Token   string        `json:"token"`
	Expires int64         `json:"expires"`
	Error   *ServiceError `json:"error,omitempty"`
}

// ServiceError is the error envelope feature services return inside an
// HTTP 200 body.
type ServiceError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("arcgis: service error %d: %s", e.Code, e.Message)
}

// Token error codes. The service reports an expired or invalid token in
// the response body, not the HTTP status.
const (
	codeInvalidToken = 498
	codeTokenNeeded  = 499
)

// isTokenError reports whether the service rejected the request token.
func (e *ServiceError) isTokenError() bool {
	return e.Code == codeInvalidToken || e.Code == codeTokenNeeded
}

// Query describes one layer query.
type Query struct {
	Where          string
	OutFields      []string
	ReturnGeometry bool
}
