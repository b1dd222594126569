package ledger

// EntryFunction is the payload of a user transaction: a Move entry function
// with fully qualified name, generic type arguments, and BCS-free JSON args.
type EntryFunction struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

type txnPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

type txnSignature struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

type txnRequest struct {
	Sender                  string        `json:"sender"`
	SequenceNumber          string        `json:"sequence_number"`
	MaxGasAmount            string        `json:"max_gas_amount"`
	GasUnitPrice            string        `json:"gas_unit_price"`
	ExpirationTimestampSecs string        `json:"expiration_timestamp_secs"`
	Payload                 txnPayload    `json:"payload"`
	Signature               *txnSignature `json:"signature,omitempty"`
}

type Account struct {
	SequenceNumber    string `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

type Transaction struct {
	Hash         string `json:"hash"`
	Type         string `json:"type"`
	Success      bool   `json:"success"`
	VMStatus     string `json:"vm_status"`
	GasUsed      string `json:"gas_used"`
	GasUnitPrice string `json:"gas_unit_price"`
	Sender       string `json:"sender"`
	Version      string `json:"version"`
}

type SimulationResult struct {
	Success      bool   `json:"success"`
	VMStatus     string `json:"vm_status"`
	GasUsed      string `json:"gas_used"`
	GasUnitPrice string `json:"gas_unit_price"`
	MaxGasAmount string `json:"max_gas_amount"`
}

type gasPriceResponse struct {
	GasEstimate           uint64 `json:"gas_estimate"`
	DeprioritizedEstimate uint64 `json:"deprioritized_gas_estimate"`
	PrioritizedEstimate   uint64 `json:"prioritized_gas_estimate"`
}

type viewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// Signer produces ed25519 signatures over node-encoded signing messages.
type Signer interface {
	Address() string
	PublicKeyHex() string
	Sign(message []byte) (string, error)
}
