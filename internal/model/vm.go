package model

// VMStatus represents the lifecycle state of a sandboxed VM.
type VMStatus string

const (
	// VMStatusUninitialized indicates the VM exists but Init has not been called.
	VMStatusUninitialized VMStatus = "uninitialized"
	// VMStatusInitializing indicates Init is in progress.
	VMStatusInitializing VMStatus = "initializing"
	// VMStatusReady indicates the VM accepts evaluations.
	VMStatusReady VMStatus = "ready"
	// VMStatusDisposed indicates the VM has been torn down.
	VMStatusDisposed VMStatus = "disposed"
)
