package device

// Position2D is the decoded state of a position2d device.
type Position2D struct {
	X, Y     int32 // mm
	Yaw      int32 // degrees
	XSpeed   int32 // mm/s
	YSpeed   int32
	YawSpeed int32 // degrees/s
	Stall    bool
}

// Position2DOf reads a position2d snapshot.
func Position2DOf(s *Snapshot) (Position2D, bool) {
	if s == nil || s.Key.Code != CodePosition2D || s.Record == nil {
		return Position2D{}, false
	}
	r := s.Record
	return Position2D{
		X:        int32(r.Int("x")),
		Y:        int32(r.Int("y")),
		Yaw:      int32(r.Int("yaw")),
		XSpeed:   int32(r.Int("xspeed")),
		YSpeed:   int32(r.Int("yspeed")),
		YawSpeed: int32(r.Int("yawspeed")),
		Stall:    r.Int("stall") != 0,
	}, true
}

// Velocity returns a position2d command record that sets speeds only.
func Velocity(xspeed, yspeed, yawspeed int32) Record {
	return Record{
		"xspeed":   int64(xspeed),
		"yspeed":   int64(yspeed),
		"yawspeed": int64(yawspeed),
		"state":    int64(1),
		"type":     int64(0),
	}
}

// Laser is the decoded state of a laser device.
type Laser struct {
	MinAngle   int16 // hundredths of a degree
	MaxAngle   int16
	Resolution uint16
	RangeRes   uint16
	Ranges     []uint16 // mm, Count entries
	Intensity  []uint8
}

// LaserOf reads a laser snapshot. Only the first count samples are returned.
func LaserOf(s *Snapshot) (Laser, bool) {
	if s == nil || s.Key.Code != CodeLaser || s.Record == nil {
		return Laser{}, false
	}
	r := s.Record
	n := int(r.Int("count"))
	ranges, intensity := r.Ints("ranges"), r.Ints("intensity")
	if n > len(ranges) {
		n = len(ranges)
	}
	l := Laser{
		MinAngle:   int16(r.Int("min_angle")),
		MaxAngle:   int16(r.Int("max_angle")),
		Resolution: uint16(r.Int("resolution")),
		RangeRes:   uint16(r.Int("range_res")),
		Ranges:     make([]uint16, n),
		Intensity:  make([]uint8, n),
	}
	for i := 0; i < n; i++ {
		l.Ranges[i] = uint16(ranges[i])
		if i < len(intensity) {
			l.Intensity[i] = uint8(intensity[i])
		}
	}
	return l, true
}

// Blob is one blobfinder detection.
type Blob struct {
	ID                       int16
	Color                    uint32
	Area                     uint32
	X, Y                     uint16
	Left, Right, Top, Bottom uint16
	Range                    uint16
}

// Blobs reads a blobfinder snapshot.
func Blobs(s *Snapshot) (width, height uint16, blobs []Blob, ok bool) {
	if s == nil || s.Key.Code != CodeBlobfinder || s.Record == nil {
		return 0, 0, nil, false
	}
	r := s.Record
	for _, b := range r.List("blobs") {
		blobs = append(blobs, Blob{
			ID:     int16(b.Int("id")),
			Color:  uint32(b.Int("color")),
			Area:   uint32(b.Int("area")),
			X:      uint16(b.Int("x")),
			Y:      uint16(b.Int("y")),
			Left:   uint16(b.Int("left")),
			Right:  uint16(b.Int("right")),
			Top:    uint16(b.Int("top")),
			Bottom: uint16(b.Int("bottom")),
			Range:  uint16(b.Int("range")),
		})
	}
	return uint16(r.Int("width")), uint16(r.Int("height")), blobs, true
}

// Geometry is a pose and size reply shared by several interfaces.
type Geometry struct {
	Pose [3]int16 // x, y (mm), yaw
	Size [2]int16 // length, width (mm)
}

// GeometryOf reads a geometry response.
func GeometryOf(r *Response) (Geometry, bool) {
	if r == nil || r.Record == nil {
		return Geometry{}, false
	}
	var g Geometry
	pose, size := r.Record.Ints("pose"), r.Record.Ints("size")
	if len(pose) != 3 || len(size) != 2 {
		return Geometry{}, false
	}
	for i := range g.Pose {
		g.Pose[i] = int16(pose[i])
	}
	for i := range g.Size {
		g.Size[i] = int16(size[i])
	}
	return g, true
}
