package device

import (
	"fmt"
	"strconv"
)

// Interface codes
const (
	CodePlayer            uint16 = 1 // the server connection itself
	CodePower             uint16 = 2
	CodeGripper           uint16 = 3
	CodePosition          uint16 = 4
	CodeSonar             uint16 = 5
	CodeLaser             uint16 = 6
	CodeBlobfinder        uint16 = 7
	CodePTZ               uint16 = 8
	CodeAudio             uint16 = 9
	CodeFiducial          uint16 = 10
	CodeSpeech            uint16 = 12
	CodeGPS               uint16 = 13
	CodeBumper            uint16 = 14
	CodeTruth             uint16 = 15
	CodeIDARTurret        uint16 = 16
	CodeIDAR              uint16 = 17
	CodeDescartes         uint16 = 18
	CodeDIO               uint16 = 20
	CodeAIO               uint16 = 21
	CodeIR                uint16 = 22
	CodeWiFi              uint16 = 23
	CodeWaveform          uint16 = 24
	CodeLocalize          uint16 = 25
	CodeMCom              uint16 = 26
	CodeSound             uint16 = 27
	CodeAudioDSP          uint16 = 28
	CodeAudioMixer        uint16 = 29
	CodePosition3D        uint16 = 30
	CodeSimulation        uint16 = 31
	CodeServiceAdv        uint16 = 32
	CodeBlinkenlight      uint16 = 33
	CodeNomad             uint16 = 34
	CodeCamera            uint16 = 40
	CodeMap               uint16 = 42
	CodePlanner           uint16 = 44
	CodeLog               uint16 = 45
	CodeEnergy            uint16 = 46
	CodeMotor             uint16 = 47
	CodePosition2D        uint16 = 48
	CodeJoystick          uint16 = 49
	CodeSpeechRecognition uint16 = 50
	CodeOpaque            uint16 = 51
	CodeNull              uint16 = 256
)

var codeNames = map[uint16]string{
	CodePlayer:            "player",
	CodePower:             "power",
	CodeGripper:           "gripper",
	CodePosition:          "position",
	CodeSonar:             "sonar",
	CodeLaser:             "laser",
	CodeBlobfinder:        "blobfinder",
	CodePTZ:               "ptz",
	CodeAudio:             "audio",
	CodeFiducial:          "fiducial",
	CodeSpeech:            "speech",
	CodeGPS:               "gps",
	CodeBumper:            "bumper",
	CodeTruth:             "truth",
	CodeIDARTurret:        "idarturret",
	CodeIDAR:              "idar",
	CodeDescartes:         "descartes",
	CodeDIO:               "dio",
	CodeAIO:               "aio",
	CodeIR:                "ir",
	CodeWiFi:              "wifi",
	CodeWaveform:          "waveform",
	CodeLocalize:          "localize",
	CodeMCom:              "mcom",
	CodeSound:             "sound",
	CodeAudioDSP:          "audiodsp",
	CodeAudioMixer:        "audiomixer",
	CodePosition3D:        "position3d",
	CodeSimulation:        "simulation",
	CodeServiceAdv:        "service_adv",
	CodeBlinkenlight:      "blinkenlight",
	CodeNomad:             "nomad",
	CodeCamera:            "camera",
	CodeMap:               "map",
	CodePlanner:           "planner",
	CodeLog:               "log",
	CodeEnergy:            "energy",
	CodeMotor:             "motor",
	CodePosition2D:        "position2d",
	CodeJoystick:          "joystick",
	CodeSpeechRecognition: "speech_recognition",
	CodeOpaque:            "opaque",
	CodeNull:              "null",
}

// CodeName returns the interface name for code, or "code(N)" when unknown.
func CodeName(code uint16) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", code)
}

// ParseCode accepts an interface name or a decimal code.
func ParseCode(s string) (uint16, error) {
	for code, name := range codeNames {
		if name == s {
			return code, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown interface %q", s)
	}
	return uint16(n), nil
}
