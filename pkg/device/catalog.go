package device

import (
	"github.com/go-faster/errors"
)

// ErrUnsupported is returned for interface codes with no registered factory.
var ErrUnsupported = errors.New("unsupported device")

// Spec describes one interface's payload layouts.
type Spec struct {
	Code    uint16
	Name    string
	Data    *Layout // nil keeps DATA payloads raw
	Command *Layout

	// Requests holds the body layout following the subtype byte of each
	// REQ; a nil entry is a subtype-only request.
	Requests map[uint8]*Layout
	// Responses holds the body layout following the subtype byte of each
	// RESP_ACK.
	Responses map[uint8]*Layout
}

// Factory creates a fresh handler for a granted subscription.
type Factory func(key Key) Handler

// FromSpec returns a factory producing LayoutHandlers for spec.
func FromSpec(spec *Spec) Factory {
	return func(key Key) Handler {
		return NewLayoutHandler(spec, key)
	}
}

// Catalog maps interface codes to handler factories.
type Catalog map[uint16]Factory

// New instantiates the handler for key.Code.
func (c Catalog) New(key Key) (Handler, error) {
	f, ok := c[key.Code]
	if !ok || f == nil {
		return nil, errors.Wrapf(ErrUnsupported, "%s", CodeName(key.Code))
	}
	return f(key), nil
}

// Supports reports whether code has a factory.
func (c Catalog) Supports(code uint16) bool {
	_, ok := c[code]
	return ok
}

// Clone returns a shallow copy that can be extended without affecting c.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Register adds or replaces the factory for spec.Code.
func (c Catalog) Register(spec *Spec) {
	c[spec.Code] = FromSpec(spec)
}

// Laser request subtypes
const (
	LaserGetGeom     uint8 = 1
	LaserSetConfig   uint8 = 2
	LaserGetConfig   uint8 = 3
	LaserPowerConfig uint8 = 4
)

// Position2D request subtypes
const (
	Position2DGetGeom      uint8 = 1
	Position2DMotorPower   uint8 = 2
	Position2DVelocityMode uint8 = 3
	Position2DResetOdom    uint8 = 4
	Position2DPositionMode uint8 = 5
	Position2DSpeedPID     uint8 = 6
	Position2DPositionPID  uint8 = 7
	Position2DSpeedProfile uint8 = 8
	Position2DSetOdom      uint8 = 9
)

// Interface limits
const (
	LaserMaxSamples    = 401
	BlobfinderMaxBlobs = 256
	FiducialMaxItems   = 32
	BumperMaxSamples   = 32
	AIOMaxSamples      = 8
)

var geomLayout = NewLayout("geom",
	Array("pose", Int16, 3),
	Array("size", Int16, 2),
)

var pidLayout = NewLayout("pid",
	Scalar("kp", Int32),
	Scalar("ki", Int32),
	Scalar("kd", Int32),
)

var laserConfig = NewLayout("laser config",
	Scalar("min_angle", Int16),
	Scalar("max_angle", Int16),
	Scalar("resolution", Uint16),
	Scalar("range_res", Uint16),
	Scalar("intensity", Uint8),
)

var (
	PowerSpec = &Spec{
		Code: CodePower, Name: "power",
		Data: NewLayout("power data", Scalar("charge", Uint16)),
	}

	GripperSpec = &Spec{
		Code: CodeGripper, Name: "gripper",
		Data:    NewLayout("gripper data", Scalar("state", Uint8), Scalar("beams", Uint8)),
		Command: NewLayout("gripper cmd", Scalar("cmd", Uint8), Scalar("arg", Uint8)),
	}

	LaserSpec = &Spec{
		Code: CodeLaser, Name: "laser",
		Data: NewLayout("laser data",
			Scalar("min_angle", Int16),
			Scalar("max_angle", Int16),
			Scalar("resolution", Uint16),
			Scalar("range_res", Uint16),
			Scalar("count", Uint16),
			Array("ranges", Uint16, LaserMaxSamples),
			Array("intensity", Uint8, LaserMaxSamples),
		),
		Requests: map[uint8]*Layout{
			LaserGetGeom:     nil,
			LaserSetConfig:   laserConfig,
			LaserGetConfig:   nil,
			LaserPowerConfig: NewLayout("laser power", Scalar("value", Uint8)),
		},
		Responses: map[uint8]*Layout{
			LaserGetGeom:   geomLayout,
			LaserGetConfig: laserConfig,
		},
	}

	BlobfinderSpec = &Spec{
		Code: CodeBlobfinder, Name: "blobfinder",
		Data: NewLayout("blobfinder data",
			Scalar("width", Uint16),
			Scalar("height", Uint16),
			Scalar("count", Uint16),
			Records("blobs", "count", BlobfinderMaxBlobs,
				Scalar("id", Int16),
				Scalar("color", Uint32),
				Scalar("area", Uint32),
				Scalar("x", Uint16),
				Scalar("y", Uint16),
				Scalar("left", Uint16),
				Scalar("right", Uint16),
				Scalar("top", Uint16),
				Scalar("bottom", Uint16),
				Scalar("range", Uint16),
			),
		),
	}

	PTZSpec = &Spec{
		Code: CodePTZ, Name: "ptz",
		Data: NewLayout("ptz data",
			Scalar("pan", Int16),
			Scalar("tilt", Int16),
			Scalar("zoom", Int16),
			Scalar("pan_speed", Int16),
			Scalar("tilt_speed", Int16),
		),
		Command: NewLayout("ptz cmd",
			Scalar("pan", Int16),
			Scalar("tilt", Int16),
			Scalar("zoom", Int16),
			Scalar("pan_speed", Int16),
			Scalar("tilt_speed", Int16),
		),
	}

	FiducialSpec = &Spec{
		Code: CodeFiducial, Name: "fiducial",
		Data: NewLayout("fiducial data",
			Scalar("count", Uint16),
			Records("fiducials", "count", FiducialMaxItems,
				Scalar("id", Int16),
				Array("pos", Int32, 3),
				Array("rot", Int32, 3),
				Array("upos", Int32, 3),
				Array("urot", Int32, 3),
			),
		),
	}

	GPSSpec = &Spec{
		Code: CodeGPS, Name: "gps",
		Data: NewLayout("gps data",
			Scalar("time_sec", Int32),
			Scalar("time_usec", Int32),
			Scalar("latitude", Int32),
			Scalar("longitude", Int32),
			Scalar("altitude", Int32),
			Scalar("utm_e", Int32),
			Scalar("utm_n", Int32),
			Scalar("quality", Uint8),
			Scalar("num_sats", Uint8),
			Scalar("hdop", Uint16),
			Scalar("vdop", Uint16),
			Scalar("err_horz", Int32),
			Scalar("err_vert", Int32),
		),
	}

	BumperSpec = &Spec{
		Code: CodeBumper, Name: "bumper",
		Data: NewLayout("bumper data",
			Scalar("count", Uint8),
			List("bumpers", Uint8, "count", BumperMaxSamples),
		),
	}

	AIOSpec = &Spec{
		Code: CodeAIO, Name: "aio",
		Data: NewLayout("aio data",
			Scalar("count", Uint8),
			List("samples", Int32, "count", AIOMaxSamples),
		),
	}

	EnergySpec = &Spec{
		Code: CodeEnergy, Name: "energy",
		Data: NewLayout("energy data",
			Scalar("mjoules", Int32),
			Scalar("mwatts", Int32),
			Scalar("charging", Uint8),
		),
	}

	Position2DSpec = &Spec{
		Code: CodePosition2D, Name: "position2d",
		Data: NewLayout("position2d data",
			Scalar("x", Int32),
			Scalar("y", Int32),
			Scalar("yaw", Int32),
			Scalar("xspeed", Int32),
			Scalar("yspeed", Int32),
			Scalar("yawspeed", Int32),
			Scalar("stall", Uint8),
		),
		Command: NewLayout("position2d cmd",
			Scalar("x", Int32),
			Scalar("y", Int32),
			Scalar("yaw", Int32),
			Scalar("xspeed", Int32),
			Scalar("yspeed", Int32),
			Scalar("yawspeed", Int32),
			Scalar("state", Uint8),
			Scalar("type", Uint8),
		),
		Requests: map[uint8]*Layout{
			Position2DGetGeom:      nil,
			Position2DMotorPower:   NewLayout("motor power", Scalar("value", Uint8)),
			Position2DVelocityMode: NewLayout("velocity mode", Scalar("value", Uint8)),
			Position2DResetOdom:    nil,
			Position2DPositionMode: NewLayout("position mode", Scalar("value", Uint8)),
			Position2DSpeedPID:     pidLayout,
			Position2DPositionPID:  pidLayout,
			Position2DSpeedProfile: NewLayout("speed profile", Scalar("speed", Int32), Scalar("accel", Int32)),
			Position2DSetOdom: NewLayout("set odom",
				Scalar("x", Int32),
				Scalar("y", Int32),
				Scalar("yaw", Int32),
			),
		},
		Responses: map[uint8]*Layout{
			Position2DGetGeom: geomLayout,
		},
	}
)

// rawCodes are interfaces the client subscribes to without decoding their
// payloads. Their snapshots carry the raw bytes only.
var rawCodes = []uint16{
	CodePosition, CodeSonar, CodeAudio, CodeSpeech, CodeTruth, CodeDIO,
	CodeIR, CodeWiFi, CodeWaveform, CodeLocalize, CodeMCom, CodeSound,
	CodeAudioDSP, CodeAudioMixer, CodePosition3D, CodeSimulation,
	CodeBlinkenlight, CodeNomad, CodeCamera, CodeMap, CodePlanner, CodeLog,
	CodeMotor, CodeJoystick, CodeSpeechRecognition,
}

// DefaultCatalog returns a new catalog holding every supported interface.
// The meta device, null, idar, idarturret, descartes, service_adv and opaque
// are not supported.
func DefaultCatalog() Catalog {
	c := make(Catalog)
	for _, spec := range []*Spec{
		PowerSpec, GripperSpec, LaserSpec, BlobfinderSpec, PTZSpec,
		FiducialSpec, GPSSpec, BumperSpec, AIOSpec, EnergySpec, Position2DSpec,
	} {
		c.Register(spec)
	}
	for _, code := range rawCodes {
		c.Register(&Spec{Code: code, Name: CodeName(code)})
	}
	return c
}
