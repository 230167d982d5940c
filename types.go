package krpc

import "github.com/dhropo/krpc/rpctypes"

// These aliases let callers depend only on the root package for the data
// model (§3) while the actual definitions live in rpctypes, alongside the
// collaborator interfaces, to avoid an import cycle with streamreg.
type (
	ClientID        = rpctypes.ClientID
	ProcedureHandle = rpctypes.ProcedureHandle
	DecodedArgs     = rpctypes.DecodedArgs
	ResumeState     = rpctypes.ResumeState
	Outcome         = rpctypes.Outcome
	Request         = rpctypes.Request
	Response        = rpctypes.Response
	StreamMessage   = rpctypes.StreamMessage

	RPCClient       = rpctypes.RPCClient
	RPCStream       = rpctypes.RPCStream
	StreamClient    = rpctypes.StreamClient
	StreamWriter    = rpctypes.StreamWriter
	Transport       = rpctypes.Transport
	StreamTransport = rpctypes.StreamTransport
	ServiceRegistry = rpctypes.ServiceRegistry
	Clock           = rpctypes.Clock
)

var (
	Done                = rpctypes.Done
	Suspend             = rpctypes.Suspend
	OK                  = rpctypes.OK
	DomainError         = rpctypes.DomainError
	IsDomainError       = rpctypes.IsDomainError
	ErrNoStreamChannel  = rpctypes.ErrNoStreamChannel
	ErrUnknownProcedure = rpctypes.ErrUnknownProcedure
)
