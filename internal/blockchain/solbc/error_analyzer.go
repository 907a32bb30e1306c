package solbc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// ErrorKind classifies a failed chain call for the caller.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindTransient         ErrorKind = "transient"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindSlippage          ErrorKind = "slippage_exceeded"
	KindCurveComplete     ErrorKind = "curve_complete"
	KindBlockhashExpired  ErrorKind = "blockhash_expired"
	KindSimulation        ErrorKind = "simulation_failed"
)

// Pump.fun program error codes surfaced as custom instruction errors.
var programErrors = map[string]ErrorKind{
	"0x1772": KindSlippage, // TooMuchSolRequired
	"0x1773": KindSlippage, // TooLittleSolReceived
	"0x1775": KindCurveComplete,
}

// Classify inspects err, including simulation logs carried by JSON-RPC errors.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	text := strings.ToLower(err.Error())
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		text += " " + strings.ToLower(rpcErr.Message)
		for _, line := range simulationLogs(rpcErr) {
			text += " " + strings.ToLower(line)
		}
	}

	for code, kind := range programErrors {
		if strings.Contains(text, code) {
			return kind
		}
	}
	switch {
	case strings.Contains(text, "insufficient lamports"),
		strings.Contains(text, "insufficient funds"),
		strings.Contains(text, "no record of a prior credit"):
		return KindInsufficientFunds
	case strings.Contains(text, "blockhash not found"),
		strings.Contains(text, "block height exceeded"):
		return KindBlockhashExpired
	case strings.Contains(text, "bondingcurvecomplete"):
		return KindCurveComplete
	case rpcErr != nil && strings.Contains(text, "simulation failed"):
		return KindSimulation
	}
	return KindTransient
}

// Retryable reports whether a failure of this kind may succeed on another attempt.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient || k == KindBlockhashExpired
}

func simulationLogs(rpcErr *jsonrpc.RPCError) []string {
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := data["logs"].([]interface{})
	if !ok {
		return nil
	}
	logs := make([]string, 0, len(raw))
	for _, entry := range raw {
		logs = append(logs, fmt.Sprint(entry))
	}
	return logs
}
