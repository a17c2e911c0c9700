package assistant

// ElevenLabs voice ids keyed by the friendly names practices pick in the
// dashboard.
var voiceIDs = map[string]string{
	"jennifer": "21m00Tcm4TlvDq8ikWAM",
	"mark":     "TxGEqnHWrfWFTfGW9XjX",
	"sarah":    "EXAVITQu4vr4xnSDxMaL",
	"david":    "ErXwobaYiN019PkySvjV",
}

// DefaultVoice is used when a practice has not chosen a voice, or chose one
// we no longer carry.
const DefaultVoice = "jennifer"

// VoiceID maps a friendly voice name to its ElevenLabs id. Unknown names
// fall back to the default voice rather than failing the call.
func VoiceID(name string) string {
	if id, ok := voiceIDs[name]; ok {
		return id
	}
	return voiceIDs[DefaultVoice]
}
