// Package aethererr defines the sentinel error kinds AETHER's components
// classify failures into, per the error handling design. Callers wrap a
// sentinel with fmt.Errorf("...: %w", err) at the boundary where the
// failure is first observed; callers further up match with errors.Is.
package aethererr

import "errors"

var (
	// ErrIOFailure covers filesystem and network I/O errors. Local recovery:
	// retry once, else surface.
	ErrIOFailure = errors.New("io failure")

	// ErrParseFailure covers a parser rejecting a file. Local recovery: skip
	// the file, record the error, keep the last-good symbol set.
	ErrParseFailure = errors.New("parse failure")

	// ErrSchemaValidation covers a SIR failing schema validation. Treated as
	// a generation failure and routed to the stale-mark path.
	ErrSchemaValidation = errors.New("schema validation failure")

	// ErrInferenceTransient covers a retryable inference failure (timeout,
	// transient 5xx). Retried with backoff; stale-marked on exhaustion.
	ErrInferenceTransient = errors.New("transient inference failure")

	// ErrInferenceFatal covers a non-retryable inference failure (auth,
	// malformed request). Surfaced; stale-marked.
	ErrInferenceFatal = errors.New("fatal inference failure")

	// ErrRateLimited covers a provider-reported rate limit. Backed off and
	// retried.
	ErrRateLimited = errors.New("rate limited")

	// ErrStoreTransactional covers a failed store transaction. Rolled back
	// and surfaced.
	ErrStoreTransactional = errors.New("store transaction failure")

	// ErrModelLoadFailure covers a local model failing to load (missing
	// weights, checksum mismatch, OOM). Surfaced with an actionable message.
	ErrModelLoadFailure = errors.New("model load failure")

	// ErrResolutionMiss is not a true error: an edge's target could not be
	// matched to a known symbol. Logged at debug, the edge is dropped.
	ErrResolutionMiss = errors.New("edge resolution miss")

	// ErrConflict covers rare write conflicts (e.g. concurrent snapshot
	// creation under the same label). Surfaced.
	ErrConflict = errors.New("conflict")

	// ErrNoBaseline is returned by historian "why changed" queries when no
	// prior SIR version exists to diff against.
	ErrNoBaseline = errors.New("no baseline version")

	// ErrSnapshotNotFound is returned by intent verify when the referenced
	// snapshot does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSIRNotFound is returned by a get_sir lookup when the given id
	// matches none of a symbol_id, file_id, or module_id currently on
	// record.
	ErrSIRNotFound = errors.New("sir not found")
)
