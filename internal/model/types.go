package model

import "time"

const EnvelopeVersion = "v1"

const (
	WorkflowKindSwap     = "swap"
	WorkflowKindTransfer = "transfer"
)

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
	Command   string          `json:"command"`
	Adapters  []AdapterStatus `json:"adapters,omitempty"`
	Cache     CacheStatus     `json:"cache"`
	Partial   bool            `json:"partial"`
}

type AdapterStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
	Stale  bool   `json:"stale"`
}

type AdapterInfo struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Router       string   `json:"router,omitempty"`
	RequiresKey  bool     `json:"requires_key"`
	Capabilities []string `json:"capabilities"`
	KeyEnvVar    string   `json:"key_env_var,omitempty"`
}

type AmountInfo struct {
	AmountBaseUnits string `json:"amount_base_units"`
	AmountDecimal   string `json:"amount_decimal"`
	Decimals        int    `json:"decimals"`
}

// AssetView is the resolved form of an asset reference as shown to the agent.
type AssetView struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name,omitempty"`
	CoinType  string `json:"coin_type,omitempty"`
	FAAddress string `json:"fa_address,omitempty"`
	Decimals  int    `json:"decimals"`
	Native    bool   `json:"native,omitempty"`
}

// PoolCandidate is one ranked swap venue option offered to the human. Index
// is the zero-based position in the ranked list and is what a selection
// answer refers to.
type PoolCandidate struct {
	Index        int        `json:"index"`
	Adapter      string     `json:"adapter"`
	Route        string     `json:"route"`
	RouteType    string     `json:"route_type"`
	FeePct       float64    `json:"fee_pct"`
	EstimatedOut AmountInfo `json:"estimated_out"`
	MinOut       AmountInfo `json:"min_out"`
	Match        string     `json:"match"`
	Summary      string     `json:"summary"`
}

// WorkflowView is the envelope payload for suspended and terminal workflows.
type WorkflowView struct {
	WorkflowID string           `json:"workflow_id"`
	Kind       string           `json:"kind"`
	Phase      string           `json:"phase"`
	Awaiting   string           `json:"awaiting,omitempty"`
	Prompt     string           `json:"prompt,omitempty"`
	Options    []string         `json:"options,omitempty"`
	Candidates []PoolCandidate  `json:"candidates,omitempty"`
	Transfer   *TransferPrompt  `json:"transfer,omitempty"`
	GasNative  string           `json:"estimated_gas_native,omitempty"`
	Result     *ExecutionResult `json:"result,omitempty"`
	Error      *ErrorBody       `json:"error,omitempty"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

// TransferPrompt is the confirmation payload shown before a transfer executes.
type TransferPrompt struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	Asset     AssetView  `json:"asset"`
	Amount    AmountInfo `json:"amount"`
	GasNative string     `json:"estimated_gas_native"`
	Summary   string     `json:"summary"`
}

// ExecutionResult is the terminal success payload of swap and transfer workflows.
type ExecutionResult struct {
	Success     bool        `json:"success"`
	TxHash      string      `json:"tx_hash"`
	Sender      string      `json:"sender"`
	Recipient   string      `json:"recipient"`
	AmountIn    AmountInfo  `json:"amount_in"`
	AmountOut   *AmountInfo `json:"amount_out,omitempty"`
	GasUsed     string      `json:"gas_used,omitempty"`
	ExplorerURL string      `json:"explorer_url,omitempty"`
	Summary     string      `json:"summary"`
}

// BalanceView is the payload of account balance reads.
type BalanceView struct {
	Address string     `json:"address"`
	Asset   AssetView  `json:"asset"`
	Balance AmountInfo `json:"balance"`
}

// TransactionView is the payload of account tx lookups.
type TransactionView struct {
	Hash        string `json:"hash"`
	Type        string `json:"type"`
	Success     bool   `json:"success"`
	VMStatus    string `json:"vm_status,omitempty"`
	GasUsed     string `json:"gas_used,omitempty"`
	Sender      string `json:"sender,omitempty"`
	Version     string `json:"version,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}
