package mirror

type TopicMessage struct {
	ConsensusTimestamp string     `json:"consensus_timestamp"`
	ChunkInfo          *ChunkInfo `json:"chunk_info,omitempty"`
	Message            string     `json:"message"`
	PayerAccountID     string     `json:"payer_account_id"`
	RunningHash        string     `json:"running_hash"`
	SequenceNumber     int64      `json:"sequence_number"`
	TopicID            string     `json:"topic_id"`
}

type ChunkInfo struct {
	InitialTransactionID any `json:"initial_transaction_id,omitempty"`
	Number               int `json:"number,omitempty"`
	Total                int `json:"total,omitempty"`
}

type Transaction struct {
	ChargedTxFee       int64      `json:"charged_tx_fee"`
	ConsensusTimestamp string     `json:"consensus_timestamp"`
	EntityID           *string    `json:"entity_id"`
	MemoBase64         string     `json:"memo_base64"`
	Name               string     `json:"name"`
	Node               string     `json:"node"`
	Result             string     `json:"result"`
	TransactionID      string     `json:"transaction_id"`
	Transfers          []Transfer `json:"transfers"`
}

type Transfer struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type Block struct {
	Number    int64  `json:"number"`
	Hash      string `json:"hash"`
	Count     int64  `json:"count"`
	Timestamp struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"timestamp"`
}

type blocksResponse struct {
	Blocks []Block `json:"blocks"`
}

const (
	TransactionNameSubmitMessage  = "CONSENSUSSUBMITMESSAGE"
	TransactionNameCryptoTransfer = "CRYPTOTRANSFER"
	ResultSuccess                 = "SUCCESS"
)
