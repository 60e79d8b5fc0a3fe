// Package artifacts manages source and result files on the local filesystem.
//
// References are plain file paths. All operations are best-effort from the
// job lifecycle's point of view: a failed artifact delete is logged by the
// caller and never blocks deleting the job record.
package artifacts
