package server

import (
	"github.com/alakazam-audio/alakazam/pkg/errors"
)

// Request size limits. Fingerprints beyond these bounds indicate a broken
// client, not a long song.
const (
	maxTitleLen     = 256
	maxArtistLen    = 256
	maxGenreLen     = 64
	maxSongHashes   = 500_000
	maxQueryHashes  = 100_000
	maxAudioSamples = 48_000 * 60 * 15 // 15 minutes at 48kHz
	maxPageSize     = 500
)

func validateUpload(req *uploadSongRequest) error {
	if req.Title == "" {
		return errors.Newf(errors.ErrInvalidInput, 400, "title is required")
	}
	if len(req.Title) > maxTitleLen {
		return errors.Newf(errors.ErrInvalidInput, 400, "title exceeds %d characters", maxTitleLen)
	}
	if req.Artist == "" {
		return errors.Newf(errors.ErrInvalidInput, 400, "artist is required")
	}
	if len(req.Artist) > maxArtistLen {
		return errors.Newf(errors.ErrInvalidInput, 400, "artist exceeds %d characters", maxArtistLen)
	}
	if len(req.Genre) > maxGenreLen {
		return errors.Newf(errors.ErrInvalidInput, 400, "genre exceeds %d characters", maxGenreLen)
	}
	if len(req.Hashes) == 0 {
		return errors.Newf(errors.ErrInvalidInput, 400, "fingerprint hashes are required")
	}
	if len(req.Hashes) > maxSongHashes {
		return errors.Newf(errors.ErrInvalidInput, 400, "fingerprint exceeds %d hashes", maxSongHashes)
	}
	if req.Duration < 0 {
		return errors.Newf(errors.ErrInvalidInput, 400, "duration must be non-negative")
	}
	if req.SampleRate < 0 {
		return errors.Newf(errors.ErrInvalidInput, 400, "sampleRate must be non-negative")
	}
	return nil
}

func validateMatch(req *matchRequest) error {
	if len(req.Hashes) > maxQueryHashes {
		return errors.Newf(errors.ErrInvalidInput, 400, "query exceeds %d hashes", maxQueryHashes)
	}
	return nil
}

func validateAudio(samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return errors.Newf(errors.ErrInvalidInput, 400, "audio samples are required")
	}
	if len(samples) > maxAudioSamples {
		return errors.Newf(errors.ErrInvalidInput, 400, "audio exceeds %d samples", maxAudioSamples)
	}
	if sampleRate <= 0 {
		return errors.Newf(errors.ErrInvalidInput, 400, "sampleRate must be positive")
	}
	return nil
}

func validatePagination(page, pageSize int64) error {
	if page < 0 || pageSize < 0 {
		return errors.Newf(errors.ErrInvalidInput, 400, "page and pageSize must be non-negative")
	}
	if pageSize > maxPageSize {
		return errors.Newf(errors.ErrInvalidInput, 400, "pageSize exceeds %d", maxPageSize)
	}
	return nil
}
