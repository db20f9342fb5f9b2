package recording

const DefaultEncoding = "audio/webm"

// PreferredEncodings is consulted in order; the first supported entry wins.
var PreferredEncodings = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/mp4",
}

func SelectEncoding(preferences []string, supports func(mimeType string) bool, fallback string) string {
	for _, mimeType := range preferences {
		if supports(mimeType) {
			return mimeType
		}
	}
	return fallback
}
