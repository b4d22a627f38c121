package streamproto

// Version is the display stream protocol version.
const Version = "1.0"

const (
	TypeSubscribe       = "SUBSCRIBE"
	TypeWelcome         = "WELCOME"
	TypeObserve         = "OBSERVE"
	TypeChunkVisibility = "CHUNK_VISIBILITY"
	TypeChunkEvict      = "CHUNK_EVICT"
	TypeTick            = "TICK"
	TypeResync          = "RESYNC"
	TypeError           = "ERROR"
)

// BaseMessage is enough to route an incoming text frame.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz      float64 `json:"tick_rate_hz"`
	Resolution      int     `json:"resolution"`
	ChunkEdge       float32 `json:"chunk_edge"`
	MaxViewDistance float32 `json:"max_view_distance"`
	DetailLevel     int     `json:"detail_level"`
	HeightScale     float32 `json:"height_scale"`
	Seed            int64   `json:"seed"`
}

// Client -> Server. First message on the connection; may be re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// WantMeshes false limits the stream to visibility and tick messages.
	WantMeshes bool `json:"want_meshes"`
	// DriveObserver lets this session's OBSERVE messages move the observer.
	DriveObserver bool `json:"drive_observer,omitempty"`
}

// Server -> Client. Reply to SUBSCRIBE, followed by a resync of visible chunks.
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldParams     WorldParams `json:"world_params"`
}

// Client -> Server. Moves the observer on the ground plane.
type ObserveMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float32 `json:"x"`
	Y               float32 `json:"y"`
}

// Server -> Client. Sent on visibility transitions and during resync.
type ChunkVisibilityMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
	Visible         bool   `json:"visible"`
}

// Server -> Client. The chunk left the store; drop its mesh.
type ChunkEvictMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
}

// Server -> Client. Full visible set; the client drops every chunk not listed.
// Mesh frames for the listed chunks follow when the session wants meshes.
type ResyncMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Tick            uint64   `json:"tick"`
	Visible         [][2]int `json:"visible"`
}

// Server -> Client. Sent after every tick.
type TickMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Observer        [2]float32 `json:"observer"`
	Center          [2]int     `json:"center"`
	Visible         int        `json:"visible"`
	Resident        int        `json:"resident"`
	Pending         int        `json:"pending"`
}

// Server -> Client. Sent before closing on a protocol violation.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
