package api

import "time"

const SchemaVersion = "v1"

// Error codes returned in ErrorResponse envelopes.
const (
	CodeInvalidRequest = "invalid_request"
	CodeOutOfRange     = "out_of_range"
	CodeInternal       = "internal"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Error         APIError  `json:"error"`
}

type HealthResponse struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Status        string    `json:"status"`
	InstanceID    string    `json:"instance_id"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

// SubwindowRef addresses one subwindow, zero-based, ix across and iy down.
type SubwindowRef struct {
	IX int `json:"ix"`
	IY int `json:"iy"`
}

// MeshPayload carries one mesh over the wire. Payload is the raw file content;
// encoding/json transports it base64-encoded.
type MeshPayload struct {
	MeshID    string `json:"mesh_id"`
	Name      string `json:"name"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
	Payload   []byte `json:"payload"`
}

// SceneRequest replaces the content of one subwindow with the given meshes.
type SceneRequest struct {
	Subwindow SubwindowRef  `json:"subwindow"`
	Meshes    []MeshPayload `json:"meshes"`
}

type SceneResponse struct {
	SchemaVersion string       `json:"schema_version"`
	GeneratedAt   time.Time    `json:"generated_at"`
	Subwindow     SubwindowRef `json:"subwindow"`
	MeshCount     int          `json:"mesh_count"`
}

type SubwindowState struct {
	Subwindow SubwindowRef `json:"subwindow"`
	MeshCount int          `json:"mesh_count"`
	MeshNames []string     `json:"mesh_names,omitempty"`
	SetAt     *string      `json:"set_at,omitempty"`
}

type StateEnvelope struct {
	SchemaVersion string           `json:"schema_version"`
	GeneratedAt   time.Time        `json:"generated_at"`
	Title         string           `json:"title"`
	WindowWidth   int              `json:"window_width"`
	WindowHeight  int              `json:"window_height"`
	GridCols      int              `json:"grid_cols"`
	GridRows      int              `json:"grid_rows"`
	Subwindows    []SubwindowState `json:"subwindows"`
}

type SnapshotRequest struct {
	Path string `json:"path"`
}

type SnapshotResponse struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	SnapshotID    string    `json:"snapshot_id"`
	Path          string    `json:"path"`
}
