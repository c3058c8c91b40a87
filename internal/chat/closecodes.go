package chat

// Close codes sent to clients when a connection ends or is refused.
const (
	CloseNormal         = 1000
	CloseGoingAway      = 1001
	CloseInternalError  = 1011
	CloseAuthFailed     = 4000
	CloseBadCredential  = 4001
	CloseNotParticipant = 4003
	CloseNotFound       = 4004
)

// Rejection is a refused handshake and the close status that goes with it.
type Rejection struct {
	Code   int
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Reason + ": " + r.Err.Error()
	}
	return r.Reason
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(code int, reason string, err error) *Rejection {
	return &Rejection{Code: code, Reason: reason, Err: err}
}
