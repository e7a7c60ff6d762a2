package settlement

import (
	"fmt"
)

// PipelineErrorKind identifies the business rule a settlement stage rejected.
type PipelineErrorKind uint8

const (
	ChannelMismatch PipelineErrorKind = iota + 1
	Unsettled
	DuplicateReceipt
	Overpayment
	UnknownPayId
	SignatureMismatch
	ProofMismatch
	RootMismatch
	ReceiverMismatch
	Overflow
	MissingFeeConfig
	EmptyInput
	Inconsistent
	InvalidEncoding
)

var pipelineErrorText = map[PipelineErrorKind]string{
	ChannelMismatch:   "invalid channel",
	Unsettled:         "receipt not settled",
	DuplicateReceipt:  "duplicate receipt",
	Overpayment:       "overpayment",
	UnknownPayId:      "unknown pay id",
	SignatureMismatch: "signature mismatch",
	ProofMismatch:     "proof mismatch",
	RootMismatch:      "root mismatch",
	ReceiverMismatch:  "receiver mismatch",
	Overflow:          "arithmetic overflow",
	MissingFeeConfig:  "missing fee config",
	EmptyInput:        "empty input",
	Inconsistent:      "inconsistent results",
	InvalidEncoding:   "invalid encoding",
}

func (k PipelineErrorKind) String() string {
	if s, ok := pipelineErrorText[k]; ok {
		return s
	}
	return "unknown pipeline error"
}

// PipelineError is the domain error type of the settlement stages. Kinds match
// with errors.Is, the Detail is informational.
type PipelineError struct {
	Kind   PipelineErrorKind
	Detail string
}

func (e *PipelineError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrChannelMismatch   = &PipelineError{Kind: ChannelMismatch}
	ErrUnsettled         = &PipelineError{Kind: Unsettled}
	ErrDuplicateReceipt  = &PipelineError{Kind: DuplicateReceipt}
	ErrOverpayment       = &PipelineError{Kind: Overpayment}
	ErrUnknownPayId      = &PipelineError{Kind: UnknownPayId}
	ErrSignatureMismatch = &PipelineError{Kind: SignatureMismatch}
	ErrProofMismatch     = &PipelineError{Kind: ProofMismatch}
	ErrRootMismatch      = &PipelineError{Kind: RootMismatch}
	ErrReceiverMismatch  = &PipelineError{Kind: ReceiverMismatch}
	ErrOverflow          = &PipelineError{Kind: Overflow}
	ErrMissingFeeConfig  = &PipelineError{Kind: MissingFeeConfig}
	ErrEmptyInput        = &PipelineError{Kind: EmptyInput}
	ErrInconsistent      = &PipelineError{Kind: Inconsistent}
	ErrInvalidEncoding   = &PipelineError{Kind: InvalidEncoding}
)

func pipelineError(kind PipelineErrorKind, format string, args ...any) error {
	return &PipelineError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
