package compressor

import "errors"

var (
	// ErrCompressionFailed is returned when media cannot be brought under
	// the size limit or the encoder fails
	ErrCompressionFailed = errors.New("compression failed")

	// ErrUnsupportedFormat is returned when the input bytes are not a
	// decodable image format
	ErrUnsupportedFormat = errors.New("unsupported media format")

	// ErrEncoderUnavailable is returned when the external video encoder
	// binary cannot be found
	ErrEncoderUnavailable = errors.New("video encoder unavailable")
)
