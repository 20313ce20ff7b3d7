package metrics

import "time"

// FTPMetrics provides observability for the FTP adapter.
//
// The adapter records one operation per filesystem call it forwards to the
// view, plus authentication outcomes and session lifecycle. A nil FTPMetrics
// is never passed around; use NewNoopFTPMetrics instead.
type FTPMetrics interface {
	// RecordOperation records a completed filesystem operation.
	//
	// Parameters:
	//   - op: operation name (e.g., "list", "retr", "stor", "rename")
	//   - duration: time spent in the bridge and the remote store
	//   - err: the error returned to the engine, nil on success
	RecordOperation(op string, duration time.Duration, err error)

	// RecordBytes records payload bytes moved over a data connection.
	//
	// Parameters:
	//   - direction: "download" or "upload"
	//   - bytes: number of bytes transferred
	RecordBytes(direction string, bytes int64)

	// RecordAuth records a login attempt. reason is empty on success and
	// one of the users.Reason values otherwise.
	RecordAuth(success bool, reason string)

	// SessionOpened and SessionClosed track authenticated sessions.
	SessionOpened()
	SessionClosed()
}

// Transfer directions.
const (
	DirectionDownload = "download"
	DirectionUpload   = "upload"
)

// NewNoopFTPMetrics returns an FTPMetrics that discards everything.
func NewNoopFTPMetrics() FTPMetrics {
	return noopFTPMetrics{}
}

type noopFTPMetrics struct{}

func (noopFTPMetrics) RecordOperation(op string, duration time.Duration, err error) {}
func (noopFTPMetrics) RecordBytes(direction string, bytes int64)                    {}
func (noopFTPMetrics) RecordAuth(success bool, reason string)                       {}
func (noopFTPMetrics) SessionOpened()                                               {}
func (noopFTPMetrics) SessionClosed()                                               {}
