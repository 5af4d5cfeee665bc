package chessdto

// Error codes carried by error envelopes.
const (
	CodeBadRequest   = "bad_request"
	CodeNotFound     = "not_found"
	CodeSelfJoin     = "self_join"
	CodeGameFull     = "game_full"
	CodeNotActive    = "not_active"
	CodeNotYourTurn  = "not_your_turn"
	CodeUnavailable  = "unavailable"
	CodeUnknownEvent = "unknown_command"
)

// DomainError is the payload of an error envelope.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess service error"
}
